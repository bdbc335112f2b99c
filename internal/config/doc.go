// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A .env file next to the working directory is loaded into the environment first,
// when present. Prices are written in whole currency units and converted to wei.
package config
