package config

import "fmt"

// ConfigurationError reports an invalid or missing setting.
type ConfigurationError struct {
	Setting string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if e.Setting != "" {
		msg = fmt.Sprintf("%s: %s", e.Setting, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "config: " + msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
