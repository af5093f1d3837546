// Package config loads and validates the versfs mount configuration.
//
// A config file is optional; every field can also be given on the command
// line. Only the storage root is required, and it must be absolute:
//
//	storage: /srv/versfs/backing
//	mountpoint: /mnt/versfs
//	allowOther: true
//	logLevel: debug
//	metricsAddr: 127.0.0.1:9123
package config
