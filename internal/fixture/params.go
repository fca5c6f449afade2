package fixture

import (
	"github.com/pkg/errors"
)

const (
	DefaultDir       = "resources/sample_vaults/Tasks-Demo/Stress Test"
	DefaultPrefix    = "tasks-stress-test"
	DefaultFiles     = 20
	DefaultItems     = 100
	DefaultTaskEvery = 1
)

// ErrInvalidParams is the cause of every Params validation failure except the stride one.
var ErrInvalidParams = errors.New("invalid generation parameters")

type Params struct {
	Prefix    string
	Files     int
	Items     int
	TaskEvery int
}

func DefaultParams() Params {
	return Params{
		Prefix:    DefaultPrefix,
		Files:     DefaultFiles,
		Items:     DefaultItems,
		TaskEvery: DefaultTaskEvery,
	}
}

func (p Params) Validate() error {
	if p.Prefix == "" {
		return errors.Wrap(ErrInvalidParams, "prefix is empty")
	}
	if p.Files < 0 {
		return errors.Wrapf(ErrInvalidParams, "files to write is negative: %d", p.Files)
	}
	if p.Items < 0 {
		return errors.Wrapf(ErrInvalidParams, "list items to write is negative: %d", p.Items)
	}
	if p.TaskEvery < 1 {
		return errors.Wrapf(ErrInvalidStride, "task every %d lines", p.TaskEvery)
	}
	return nil
}
