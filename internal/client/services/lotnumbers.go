package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
	"github.com/dmitrijs2005/lotkeeper/internal/logging"
)

// LotNumberService hands out lot numbers and replaces temporary numbers
// assigned offline with permanent ones once the remote store is reachable.
type LotNumberService interface {
	// NextLotNumber returns the next number for a new lot of the sale.
	// Offline, or when the remote store fails, it returns a temporary
	// (negative) number.
	NextLotNumber(ctx context.Context, saleID string, online bool) (int64, error)
	// ReassignTemporaryNumbers gives every temporary lot of the sale a
	// permanent number, in creation order, continuing after the current
	// maximum.
	ReassignTemporaryNumbers(ctx context.Context, saleID string) common.BatchResult
	IsLotNumberUnique(ctx context.Context, saleID string, number int64, excludeID string) (bool, error)
}

type lotNumberService struct {
	deps   Deps
	logger logging.Logger
}

func NewLotNumberService(deps Deps) LotNumberService {
	return &lotNumberService{deps: deps, logger: deps.Logger.With("component", "lotnumbers")}
}

func (s *lotNumberService) NextLotNumber(ctx context.Context, saleID string, online bool) (int64, error) {
	if online {
		n, err := s.nextPermanent(ctx, saleID)
		if err == nil {
			return n, nil
		}
		s.logger.Warn(ctx, "remote lot number lookup failed, using temporary number", "sale_id", saleID, "error", err)
	}

	var n int64
	err := dbx.InTx(ctx, s.deps.DB, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = metadata.NextTemporaryLotNumber(ctx, s.deps.Repos.Metadata(tx))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("temporary lot number: %w", err)
	}
	return n, nil
}

func (s *lotNumberService) nextPermanent(ctx context.Context, saleID string) (int64, error) {
	highest, ok, err := s.deps.Remote.MaxLotNumber(ctx, saleID)
	if err != nil {
		return 0, err
	}
	if !ok || highest <= 0 {
		return 1, nil
	}
	return highest + 1, nil
}

func (s *lotNumberService) ReassignTemporaryNumbers(ctx context.Context, saleID string) common.BatchResult {
	res := common.NewBatchResult()

	lots, err := s.deps.Remote.TemporaryLots(ctx, saleID)
	if err != nil {
		res.Fail("list temporary lots of sale %s: %v", saleID, err)
		return res
	}
	if len(lots) == 0 {
		return res
	}

	next, err := s.nextPermanent(ctx, saleID)
	if err != nil {
		res.Fail("next lot number of sale %s: %v", saleID, err)
		return res
	}

	recs := s.deps.Repos.Records(s.deps.DB)
	for i, lot := range lots {
		number := next + int64(i)

		if err := s.deps.Remote.SetLotNumber(ctx, lot.ID, number); err != nil {
			res.Fail("lot %s: %v", lot.ID, err)
			continue
		}

		local, err := records.GetAs[models.Lot](ctx, recs, models.Lots, lot.ID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			local = &lot
		case err != nil:
			res.Fail("lot %s: read local copy: %v", lot.ID, err)
			continue
		}
		local.LotNumber = number
		if err := records.Put(ctx, recs, models.Lots, local); err != nil {
			res.Fail("lot %s: update local copy: %v", lot.ID, err)
			continue
		}

		res.Done()
	}

	s.logger.Info(ctx, "temporary lot numbers reassigned", "sale_id", saleID,
		"processed", res.Processed, "errors", len(res.Errors))
	return res
}

func (s *lotNumberService) IsLotNumberUnique(ctx context.Context, saleID string, number int64, excludeID string) (bool, error) {
	exists, err := s.deps.Remote.LotNumberExists(ctx, saleID, number, excludeID)
	if err == nil {
		return !exists, nil
	}
	if !errors.Is(err, common.ErrUnavailable) {
		return false, err
	}

	lots, err := records.QueryAs[models.Lot](ctx, s.deps.Repos.Records(s.deps.DB), models.Lots, "lot_number", number)
	if err != nil {
		return false, err
	}
	for _, l := range lots {
		if l.SaleID == saleID && l.ID != excludeID {
			return false, nil
		}
	}
	return true, nil
}
