package grpcplugin

import "errors"

// ErrPluginExited is returned when a plugin process exits before it is ready.
var ErrPluginExited = errors.New("plugin process exited during startup")
