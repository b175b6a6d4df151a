package domain

import "errors"

var (
	ErrArchiveNotFound = errors.New("archive not found")
	ErrInvalidArchive  = errors.New("invalid APK (zip) archive")
	ErrRecordNotFound  = errors.New("no unpack record")
)
