/*
Copyright 2025 LedgerLink Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apierror_test

import (
	"net/http"
	"testing"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "escrow esc_123 missing"
	apiErr := apierror.NewAPIError(apierror.ErrEscrowNotFound, "escrow not found", details)

	assert.Equal(t, apierror.ErrEscrowNotFound, apiErr.Code)
	assert.Equal(t, "escrow not found", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "ESCROW_NOT_FOUND: escrow not found", apiErr.Error())
}

func TestHasCode(t *testing.T) {
	apiErr := apierror.NewAPIError(apierror.ErrInsufficientFunds, "debit would go negative", nil)
	assert.True(t, apierror.HasCode(apiErr, apierror.ErrInsufficientFunds))
	assert.False(t, apierror.HasCode(apiErr, apierror.ErrEscrowNotFound))
	assert.False(t, apierror.HasCode(errors.New("plain"), apierror.ErrInsufficientFunds))

	wrapped := errors.Wrap(apiErr, "transfer failed")
	assert.True(t, apierror.HasCode(wrapped, apierror.ErrInsufficientFunds))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "AccountNotFound Error",
			err:      apierror.NewAPIError(apierror.ErrAccountNotFound, "account not found", nil),
			expected: http.StatusNotFound,
		},
		{
			name:     "InvalidHeader Error",
			err:      apierror.NewAPIError(apierror.ErrInvalidHeader, "condition without expiry", nil),
			expected: http.StatusBadRequest,
		},
		{
			name:     "InsufficientFunds Error",
			err:      apierror.NewAPIError(apierror.ErrInsufficientFunds, "insufficient funds", nil),
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "Unknown error",
			err:      errors.New("boom"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}
