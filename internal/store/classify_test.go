package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"missing row", gorm.ErrRecordNotFound, ErrNotFound},
		{"unique index violation", gorm.ErrDuplicatedKey, ErrDuplicate},
		{"wrapped duplicate", errors.Join(errors.New("insert users"), gorm.ErrDuplicatedKey), ErrDuplicate},
		{"infrastructure failure", errors.New("dial tcp: connection refused"), ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.in), tt.want)
		})
	}
}
