package database

import "errors"

// ErrEmailTaken is returned when registering an identity whose email address
// already belongs to another identity.
var ErrEmailTaken = errors.New("email address already registered")
