package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/ledgerlink/ledgerlink/internal/apierror"
	"github.com/ledgerlink/ledgerlink/model"
)

// AddPendingTransfer upserts: a connector that re-issues a hop for the same
// transaction overwrites its previous entry.
func (d Datasource) AddPendingTransfer(ctx context.Context, pt model.PendingTransfer) error {
	headerJSON, err := json.Marshal(pt.Header)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to serialize header", err)
	}
	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO pending_transfers (transaction_id, header, target_ledger_id, originating_ledger_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (transaction_id) DO UPDATE SET header = $2, target_ledger_id = $3, originating_ledger_id = $4`,
		pt.TransactionID, headerJSON, pt.TargetLedgerID, pt.OriginatingLedgerID, pt.CreatedAt,
	)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to record pending transfer", errors.Wrap(err, "insert pending transfer"))
	}
	return nil
}

func (d Datasource) RemovePendingTransfer(ctx context.Context, transactionID string) error {
	_, err := d.Conn.ExecContext(ctx,
		`DELETE FROM pending_transfers WHERE transaction_id = $1`, transactionID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to remove pending transfer", errors.Wrap(err, "delete pending transfer"))
	}
	return nil
}

// GetPendingTransfer returns nil with no error when the id is unknown.
func (d Datasource) GetPendingTransfer(ctx context.Context, transactionID string) (*model.PendingTransfer, error) {
	row := d.Conn.QueryRowContext(ctx,
		`SELECT transaction_id, header, target_ledger_id, originating_ledger_id, created_at FROM pending_transfers WHERE transaction_id = $1`,
		transactionID,
	)
	pt := model.PendingTransfer{}
	var headerJSON []byte
	err := row.Scan(&pt.TransactionID, &headerJSON, &pt.TargetLedgerID, &pt.OriginatingLedgerID, &pt.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to load pending transfer", errors.Wrap(err, "select pending transfer"))
	}
	if err := json.Unmarshal(headerJSON, &pt.Header); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to decode pending transfer header", err)
	}
	return &pt, nil
}
