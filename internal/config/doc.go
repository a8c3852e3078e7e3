// Package config loads atomdom.json or atomdom.yaml, the configuration of
// the atomdom CLI.
//
// # Configuration File Structure
//
//	{
//	  "runtime": {
//	    "maxChainedFlushes": 100,
//	    "microtaskBudget": 0,
//	    "strict": false
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "path": "/metrics",
//	    "namespace": "atomdom"
//	  },
//	  "server": {
//	    "addr": "localhost:3000",
//	    "streamPath": "/stream",
//	    "title": "atomdom",
//	    "writeTimeout": "10s",
//	    "allowedOrigins": ["http://localhost:3000"]
//	  }
//	}
//
// The same structure may be written as atomdom.yaml, which Load reads when
// there is no atomdom.json:
//
//	server:
//	  addr: ":8080"
//	log:
//	  level: debug
//
// Missing fields take their defaults. A missing file is an error from Load
// but callers may fall back to New.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := cfg.Logger(os.Stderr)
package config
