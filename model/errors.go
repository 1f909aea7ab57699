package model

import (
	"fmt"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
)

func errInvalidHeader(msg string) error {
	return apierror.NewAPIError(apierror.ErrInvalidHeader, msg, nil)
}

func errInvalidAddress(wantLedger, gotLedger string) error {
	return apierror.NewAPIError(apierror.ErrInvalidAddress,
		fmt.Sprintf("address belongs to ledger %s, expected %s", gotLedger, wantLedger), nil)
}
