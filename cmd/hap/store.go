package main

import (
	"fmt"
	"io"

	"github.com/backkem/hap/pkg/credentials"
	"github.com/backkem/hap/pkg/securechannel/hap"
)

// Store kinds.
const (
	storeFile = "file"
	storeBolt = "bolt"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore opens the configured credential store. The closer must be
// called when done.
func openStore(kind, path string) (hap.CredentialStore, io.Closer, error) {
	switch kind {
	case storeFile, "":
		s, err := credentials.NewFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case storeBolt:
		s, err := credentials.OpenBoltStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", kind)
}

// selectCredentials returns the stored credentials for id, or the only
// stored entry when id is empty.
func selectCredentials(store hap.CredentialStore, id string) (*hap.Credentials, error) {
	if id != "" {
		return store.LoadCredentials(id)
	}
	list, err := store.ListCredentials()
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, fmt.Errorf("no stored credentials, run pair first")
	case 1:
		return list[0], nil
	}
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.AccessoryIdentifier)
	}
	return nil, fmt.Errorf("%d stored credentials %v, select one with --id", len(list), ids)
}
