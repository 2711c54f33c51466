// Package storage is the durable key/value medium the shell stores persist into.
// Every store owns a distinct key, so backends never see cross-store contention.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when nothing is stored under the key.
	ErrNotFound = errors.New("storage: key not found")
	// ErrUnavailable is returned when the medium cannot be used at all.
	// Stores degrade to memory-only state when they see it.
	ErrUnavailable = errors.New("storage: medium unavailable")
)

// Storage is a string key/value medium.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Unavailable is the medium used when no durable storage is configured.
// Every call fails with ErrUnavailable.
type Unavailable struct{}

var _ Storage = Unavailable{}

func (Unavailable) Get(context.Context, string) (string, error) { return "", ErrUnavailable }
func (Unavailable) Set(context.Context, string, string) error   { return ErrUnavailable }
func (Unavailable) Remove(context.Context, string) error        { return ErrUnavailable }
