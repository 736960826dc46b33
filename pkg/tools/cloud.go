package tools

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ServiceState is the simulated health of one service.
type ServiceState struct {
	Status       string    `json:"status"` // healthy, degraded, critical
	Uptime       string    `json:"uptime"`
	LastRestart  time.Time `json:"last_restart,omitempty"`
	RestartCount int       `json:"restart_count"`
}

// ActionLog is one entry in the infrastructure action history.
type ActionLog struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Detail    string    `json:"detail,omitempty"`
}

// CloudInfra simulates a small cloud estate: a handful of services with
// health states and a scalable worker fleet. All mutating tools append
// to an action log so demos and tests can inspect what ran.
type CloudInfra struct {
	mu        sync.RWMutex
	services  map[string]*ServiceState
	fleetSize int
	actions   []ActionLog
}

// NewCloudInfra creates the simulated infrastructure with its default
// services.
func NewCloudInfra() *CloudInfra {
	return &CloudInfra{
		services: map[string]*ServiceState{
			"web-frontend": {Status: "healthy", Uptime: "14d 3h"},
			"billing-api":  {Status: "healthy", Uptime: "7d 12h"},
			"auth-service": {Status: "healthy", Uptime: "21d 9h"},
			"search-index": {Status: "degraded", Uptime: "2d 1h"},
		},
		fleetSize: 3,
	}
}

// SetServiceHealth overrides a service's health status. Used by the
// incident simulation endpoint. Unknown services are created.
func (c *CloudInfra) SetServiceHealth(service, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.services[service]
	if !ok {
		state = &ServiceState{Uptime: "0h"}
		c.services[service] = state
	}
	state.Status = status

	c.logAction("simulate_incident", service, "status set to "+status)
}

// Services returns a snapshot of all service states.
func (c *CloudInfra) Services() map[string]ServiceState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]ServiceState, len(c.services))
	for name, state := range c.services {
		out[name] = *state
	}
	return out
}

// FleetSize returns the current worker fleet size.
func (c *CloudInfra) FleetSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.fleetSize
}

// RecentActions returns up to n most recent action log entries, oldest
// first.
func (c *CloudInfra) RecentActions(n int) []ActionLog {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := len(c.actions) - n
	if start < 0 {
		start = 0
	}
	return append([]ActionLog(nil), c.actions[start:]...)
}

// logAction appends to the action history. Caller holds the lock.
func (c *CloudInfra) logAction(action, target, detail string) {
	c.actions = append(c.actions, ActionLog{
		Timestamp: time.Now(),
		Action:    action,
		Target:    target,
		Detail:    detail,
	})
}

// RegisterAll registers the cloud infrastructure tools on a registry.
func (c *CloudInfra) RegisterAll(registry *Registry) error {
	all := []*Tool{
		{
			Descriptor: Descriptor{
				Name:        "get_service_status",
				Description: "Get service health status",
				Category:    CategoryReadOnly,
			},
			Handler: c.getServiceStatus,
		},
		{
			Descriptor: Descriptor{
				Name:        "list_services",
				Description: "List all services and their health",
				Category:    CategoryReadOnly,
			},
			Handler: c.listServices,
		},
		{
			Descriptor: Descriptor{
				Name:        "read_logs",
				Description: "Read recent log lines from a service",
				Category:    CategoryReadOnly,
			},
			Handler: c.readLogs,
		},
		{
			Descriptor: Descriptor{
				Name:        "restart_service",
				Description: "Restart a service (EMERGENCY only)",
				Category:    CategoryActive,
			},
			Handler: c.restartService,
		},
		{
			Descriptor: Descriptor{
				Name:        "scale_fleet",
				Description: "Scale the worker fleet to a target size",
				Category:    CategoryActive,
			},
			Handler: c.scaleFleet,
		},
		{
			Descriptor: Descriptor{
				Name:        "delete_database",
				Description: "Delete database (ALWAYS BLOCKED)",
				Category:    CategoryDestructive,
			},
			Handler: c.deleteDatabase,
		},
	}

	for _, tool := range all {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// stringArg extracts a required string argument.
func stringArg(tool string, args map[string]any, key string) (string, error) {
	value, ok := args[key]
	if !ok {
		return "", NewInvalidArgumentsError(tool, "missing required argument %q", key)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", NewInvalidArgumentsError(tool, "argument %q must be a non-empty string", key)
	}
	return s, nil
}

// intArg extracts a required integer argument. JSON decoding yields
// float64, so both are accepted.
func intArg(tool string, args map[string]any, key string) (int, error) {
	value, ok := args[key]
	if !ok {
		return 0, NewInvalidArgumentsError(tool, "missing required argument %q", key)
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, NewInvalidArgumentsError(tool, "argument %q must be an integer", key)
	}
}

func (c *CloudInfra) getServiceStatus(ctx context.Context, args map[string]any) (any, error) {
	service, err := stringArg("get_service_status", args, "service")
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.services[service]
	if !ok {
		return nil, NewInvalidArgumentsError("get_service_status", "unknown service %q", service)
	}

	return map[string]any{
		"service":       service,
		"status":        state.Status,
		"uptime":        state.Uptime,
		"restart_count": state.RestartCount,
	}, nil
}

func (c *CloudInfra) listServices(ctx context.Context, args map[string]any) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	services := make([]map[string]any, 0, len(c.services))
	for name, state := range c.services {
		services = append(services, map[string]any{
			"service": name,
			"status":  state.Status,
		})
	}

	return map[string]any{
		"services":   services,
		"fleet_size": c.fleetSize,
	}, nil
}

func (c *CloudInfra) readLogs(ctx context.Context, args map[string]any) (any, error) {
	service, err := stringArg("read_logs", args, "service")
	if err != nil {
		return nil, err
	}

	lines := 10
	if _, ok := args["lines"]; ok {
		lines, err = intArg("read_logs", args, "lines")
		if err != nil {
			return nil, err
		}
		if lines < 1 {
			return nil, NewInvalidArgumentsError("read_logs", "lines must be positive")
		}
	}

	c.mu.RLock()
	state, ok := c.services[service]
	c.mu.RUnlock()
	if !ok {
		return nil, NewInvalidArgumentsError("read_logs", "unknown service %q", service)
	}

	entries := make([]string, 0, lines)
	for i := 0; i < lines; i++ {
		entries = append(entries, fmt.Sprintf("[%s] %s status=%s request served", time.Now().Add(-time.Duration(lines-i)*time.Second).Format(time.RFC3339), service, state.Status))
	}

	return map[string]any{
		"service": service,
		"lines":   entries,
	}, nil
}

func (c *CloudInfra) restartService(ctx context.Context, args map[string]any) (any, error) {
	service, err := stringArg("restart_service", args, "service")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.services[service]
	if !ok {
		return nil, NewInvalidArgumentsError("restart_service", "unknown service %q", service)
	}

	state.Status = "healthy"
	state.Uptime = "0h"
	state.LastRestart = time.Now()
	state.RestartCount++
	c.logAction("restart_service", service, "restarted")

	return map[string]any{
		"service":       service,
		"status":        state.Status,
		"restart_count": state.RestartCount,
		"message":       fmt.Sprintf("service %q restarted", service),
	}, nil
}

func (c *CloudInfra) scaleFleet(ctx context.Context, args map[string]any) (any, error) {
	target, err := intArg("scale_fleet", args, "count")
	if err != nil {
		return nil, err
	}
	if target < 0 {
		return nil, NewInvalidArgumentsError("scale_fleet", "count must not be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.fleetSize
	c.fleetSize = target
	c.logAction("scale_fleet", "worker-fleet", fmt.Sprintf("scaled %d -> %d", previous, target))

	return map[string]any{
		"previous_size": previous,
		"fleet_size":    target,
		"message":       fmt.Sprintf("fleet scaled from %d to %d workers", previous, target),
	}, nil
}

// deleteDatabase exists so the catalog and policy tests have a real
// destructive tool to point at. The always-blocked list keeps it from
// ever being reached through the normal execution path.
func (c *CloudInfra) deleteDatabase(ctx context.Context, args map[string]any) (any, error) {
	name, err := stringArg("delete_database", args, "database")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logAction("delete_database", name, "deleted")

	return map[string]any{
		"database": name,
		"message":  fmt.Sprintf("database %q deleted", name),
	}, nil
}
