// Package policy defines the policy document model for the guardian
// decision engine.
//
// A policy document declares the set of operational modes (for example
// NORMAL and EMERGENCY), the tools each mode allows or blocks, and the
// global rules that apply in every mode. Documents are loaded once at
// startup and are immutable afterwards; there is no reload path. The
// optional drift watcher reports when the on-disk document no longer
// matches the loaded one, but never swaps it.
//
// Documents may be written in JSON or YAML:
//
//	{
//	  "policy_name": "ops-policy",
//	  "version": "1.0",
//	  "modes": {
//	    "NORMAL": {
//	      "description": "Routine operations",
//	      "allowed_tools": ["get_service_status", "list_services"],
//	      "blocked_tools": ["restart_service"]
//	    },
//	    "EMERGENCY": {
//	      "description": "Incident response",
//	      "allowed_tools": ["restart_service", "scale_fleet"],
//	      "blocked_tools": []
//	    }
//	  },
//	  "global_rules": {
//	    "always_blocked": ["delete_database"]
//	  }
//	}
package policy
