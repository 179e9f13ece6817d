package liststore

import (
	"net/url"
	"strconv"
)

const (
	DefaultNamespace = "comments"
	DefaultVersion   = 1

	lockSuffix = ":locked"
)

// Keys derives list and lock keys for a (content type, object pk) pair.
// The pk is query-escaped, so it never contains the ':' separator and keys cannot collide.
type Keys struct {
	Namespace string
	Version   int
}

func DefaultKeys() Keys {
	return Keys{Namespace: DefaultNamespace, Version: DefaultVersion}
}

func (k Keys) List(contentTypeID int64, objectPK string) string {
	ns := k.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	version := k.Version
	if version == 0 {
		version = DefaultVersion
	}
	return ns + ":" + strconv.Itoa(version) + ":" + strconv.FormatInt(contentTypeID, 10) + ":" + url.QueryEscape(objectPK)
}

func (k Keys) Lock(contentTypeID int64, objectPK string) string {
	return k.List(contentTypeID, objectPK) + lockSuffix
}
