// Package logger provides structured logging for funnel runs and tools
// using zerolog.
//
// Output is JSON or console text. Every logger carries a component name,
// and a component can be given its own level, so a noisy package can be
// turned up without drowning the rest of a run.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  components:
//	    jsonl: "debug"
//	    datascan: "warn"
//
// # Usage
//
//	log := logger.Get("funnel")
//	log.Info("run finished", logger.Fields("run_id", id, "emitted", n))
package logger
