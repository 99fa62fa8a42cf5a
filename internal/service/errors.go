package service

import "errors"

var ErrPaymentNotSettled = errors.New("receipt does not confirm a settled payment")
