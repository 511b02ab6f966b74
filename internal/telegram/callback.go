package telegram

import (
	"errors"
	"strconv"
	"strings"
)

// Данные inline-кнопок.
const (
	cbMainMenu       = "main_menu"
	cbSub            = "sub"
	cbTrial          = "trial"
	cbKey            = "key"
	cbRef            = "ref"
	cbConnectAndroid = "connect_android"
	cbConnectIOS     = "connect_ios"

	cbSubPrefix   = "sub_"
	cbCheckPrefix = "check_"
)

// callbackDataLimit ограничение Telegram на callback_data.
const callbackDataLimit = 64

var errUnknownCallback = errors.New("unknown callback")

type action int

const (
	actionMainMenu action = iota + 1
	actionSub
	actionSubPeriod
	actionCheck
	actionTrial
	actionKey
	actionRef
	actionConnectAndroid
	actionConnectIOS
)

type callback struct {
	action action
	months int
	handle string
}

func parseCallback(data string) (callback, error) {
	switch data {
	case cbMainMenu:
		return callback{action: actionMainMenu}, nil
	case cbSub:
		return callback{action: actionSub}, nil
	case cbTrial:
		return callback{action: actionTrial}, nil
	case cbKey:
		return callback{action: actionKey}, nil
	case cbRef:
		return callback{action: actionRef}, nil
	case cbConnectAndroid:
		return callback{action: actionConnectAndroid}, nil
	case cbConnectIOS:
		return callback{action: actionConnectIOS}, nil
	}

	switch {
	case strings.HasPrefix(data, cbSubPrefix):
		months, err := strconv.Atoi(strings.TrimPrefix(data, cbSubPrefix))
		if err != nil || months <= 0 {
			return callback{}, errUnknownCallback
		}
		return callback{action: actionSubPeriod, months: months}, nil
	case strings.HasPrefix(data, cbCheckPrefix):
		handle := strings.TrimPrefix(data, cbCheckPrefix)
		if handle == "" {
			return callback{}, errUnknownCallback
		}
		return callback{action: actionCheck, handle: handle}, nil
	}
	return callback{}, errUnknownCallback
}

func subPeriodData(months int) string {
	return cbSubPrefix + strconv.Itoa(months)
}

func checkData(handle string) string {
	return cbCheckPrefix + handle
}
