package settings

import "errors"

// ErrNoSettingsFile is returned when a FileStore is created without a path.
var ErrNoSettingsFile = errors.New("settings file path must not be empty")
