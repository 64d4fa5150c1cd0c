package listener

import "errors"

// ErrInvalidCredentials names the failed-login error kind: a client's /login
// attempt does not match the device's configured user/password. The login
// gate does not return it; it replies with a !trap and closes the
// connection.
var ErrInvalidCredentials = errors.New("listener: invalid credentials")
