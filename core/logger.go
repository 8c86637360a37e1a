package core

// Logger is implemented by every logging service.
// args may contain errors, extra data (map[string]interface{}) & the logged in user.User.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
