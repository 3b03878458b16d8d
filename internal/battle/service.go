package battle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/internal/inventory"
	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/pkg/address"
	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/metrics"
)

const bpsDenominator = 10000

// Combatant is one side of a battle as submitted by the caller. Base and
// booster are the bloblet's stat line at challenge time.
type Combatant struct {
	Address string
	Base    int64
	Booster int64
}

func (c Combatant) total() int64 {
	return c.Base + c.Booster
}

// ResolveInput is a battle to resolve. Seed drives every random draw, so the
// same input always produces the same outcome.
type ResolveInput struct {
	Attacker Combatant
	Defender Combatant
	Seed     int64
}

// Service resolves battles and records their outcomes.
type Service interface {
	Resolve(ctx context.Context, input ResolveInput) (*models.PvpBattle, error)
	Get(ctx context.Context, battleID uuid.UUID) (*models.PvpBattle, error)
	HistoryFor(ctx context.Context, addr string, limit int) ([]models.PvpBattle, error)
}

// ServiceParams groups dependencies for the battle service.
type ServiceParams struct {
	Repo      Repository
	Ledger    ledger.Service
	Inventory inventory.Repository
	Config    config.BattleConfig
	Metrics   *metrics.EconomyMetrics
}

type service struct {
	repo         Repository
	ledger       ledger.Service
	inventory    inventory.Repository
	cfg          config.BattleConfig
	houseAddress string
	metrics      *metrics.EconomyMetrics
}

// NewService builds the battle service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "battle repo is required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger service is required")
	}
	if params.Inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory repo is required")
	}
	house, err := address.Canonical(params.Config.HouseAddress)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid house address")
	}
	return &service{
		repo:         params.Repo,
		ledger:       params.Ledger,
		inventory:    params.Inventory,
		cfg:          params.Config,
		houseAddress: house,
		metrics:      params.Metrics,
	}, nil
}

// Resolve settles a battle: picks the winner, moves points through the ledger
// and steals loot, all in one transaction.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.PvpBattle, error) {
	attackerAddr, err := address.Canonical(input.Attacker.Address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attacker address")
	}
	defenderAddr, err := address.Canonical(input.Defender.Address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid defender address")
	}
	if attackerAddr == defenderAddr {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a bloblet cannot battle itself")
	}
	if attackerAddr == s.houseAddress || defenderAddr == s.houseAddress {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "the house does not battle")
	}
	if input.Attacker.Base < 0 || input.Attacker.Booster < 0 ||
		input.Defender.Base < 0 || input.Defender.Booster < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "combatant stats must be non-negative")
	}

	var battle *models.PvpBattle
	addresses := []string{attackerAddr, defenderAddr, s.houseAddress}
	err = s.ledger.WithAccounts(ctx, addresses, func(tx *gorm.DB, app ledger.Appender) error {
		// Reseeded per attempt so a retried unit replays the same draws.
		rng := rand.New(rand.NewSource(input.Seed))

		attackerBalance, err := app.Balance(ctx, attackerAddr)
		if err != nil {
			return err
		}
		defenderBalance, err := app.Balance(ctx, defenderAddr)
		if err != nil {
			return err
		}
		if attackerBalance < s.cfg.MinChallengePoints || defenderBalance < s.cfg.MinChallengePoints {
			return pkgerrors.New(pkgerrors.CodeNotChallengeable,
				fmt.Sprintf("both sides need at least %d points", s.cfg.MinChallengePoints))
		}

		attackerTotal := input.Attacker.total()
		defenderTotal := input.Defender.total()
		attackerWins := attackerTotal > defenderTotal
		if attackerTotal == defenderTotal {
			attackerWins = rng.Int63n(2) == 0
		}
		critical := rng.Int63n(bpsDenominator) < s.cfg.CritChanceBps

		winnerAddr, loserAddr := attackerAddr, defenderAddr
		loserTotal, loserBalance := defenderTotal, defenderBalance
		if !attackerWins {
			winnerAddr, loserAddr = defenderAddr, attackerAddr
			loserTotal, loserBalance = attackerTotal, attackerBalance
		}

		transfer := loserTotal * s.cfg.TransferBps / bpsDenominator
		if transfer < s.cfg.MinTransferPoints {
			transfer = s.cfg.MinTransferPoints
		}
		// The balance clamp wins over the floor; the loser can never go negative.
		if transfer > loserBalance {
			transfer = loserBalance
		}
		house := transfer * s.cfg.HouseCutBps / bpsDenominator
		winnerNet := transfer - house

		battleID := uuid.New()
		record := &models.PvpBattle{
			ID:              battleID,
			AttackerAddress: attackerAddr,
			DefenderAddress: defenderAddr,
			AttackerBase:    input.Attacker.Base,
			AttackerBooster: input.Attacker.Booster,
			AttackerTotal:   attackerTotal,
			DefenderBase:    input.Defender.Base,
			DefenderBooster: input.Defender.Booster,
			DefenderTotal:   defenderTotal,
			WinnerAddress:   winnerAddr,
			TransferPoints:  transfer,
			HousePoints:     house,
			Critical:        critical,
			Seed:            input.Seed,
		}

		// A zero transfer still records the battle, it just writes no entries.
		if transfer > 0 {
			if _, err := app.Append(ctx, ledger.EntryInput{
				Address:  loserAddr,
				Reason:   enums.LedgerReasonBattleLoss,
				Delta:    -transfer,
				BattleID: &battleID,
			}); err != nil {
				return err
			}
		}
		if winnerNet > 0 {
			if _, err := app.Append(ctx, ledger.EntryInput{
				Address:  winnerAddr,
				Reason:   enums.LedgerReasonBattleWin,
				Delta:    winnerNet,
				BattleID: &battleID,
			}); err != nil {
				return err
			}
		}
		if house > 0 {
			if _, err := app.Append(ctx, ledger.EntryInput{
				Address:  s.houseAddress,
				Reason:   enums.LedgerReasonTreasuryCut,
				Delta:    house,
				BattleID: &battleID,
			}); err != nil {
				return err
			}
		}

		loot, err := s.stealLoot(ctx, tx, rng, battleID, loserAddr, winnerAddr, critical)
		if err != nil {
			return err
		}
		record.Loot = loot

		if err := s.repo.WithTx(tx).Insert(ctx, record); err != nil {
			return err
		}
		battle = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "win"
	if battle.Critical {
		outcome = "critical_win"
	}
	s.metrics.IncBattle(outcome)
	return battle, nil
}

// stealLoot rolls each equipped slot of the loser's loadout and reassigns the
// stolen items. A critical hit doubles the odds.
func (s *service) stealLoot(ctx context.Context, tx *gorm.DB, rng *rand.Rand, battleID uuid.UUID, loserAddr, winnerAddr string, critical bool) ([]models.BattleLoot, error) {
	chance := s.cfg.LootChanceBps
	if critical {
		chance *= 2
	}
	if chance > bpsDenominator {
		chance = bpsDenominator
	}

	inv := s.inventory.WithTx(tx)
	loadout, err := inv.EquippedLoadout(ctx, loserAddr)
	if err != nil {
		return nil, err
	}

	var loot []models.BattleLoot
	for _, item := range loadout {
		if rng.Int63n(bpsDenominator) >= chance {
			continue
		}
		if err := inv.TransferItem(ctx, item.ID, loserAddr, winnerAddr); err != nil {
			return nil, err
		}
		loot = append(loot, models.BattleLoot{
			ID:          uuid.New(),
			BattleID:    battleID,
			Slot:        item.Slot,
			ItemID:      item.ID,
			ItemSlug:    item.Slug,
			FromAddress: loserAddr,
			ToAddress:   winnerAddr,
			Equipped:    item.Equipped,
		})
	}
	return loot, nil
}

func (s *service) Get(ctx context.Context, battleID uuid.UUID) (*models.PvpBattle, error) {
	if battleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "battle id is required")
	}
	battle, err := s.repo.FindByID(ctx, battleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "battle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load battle")
	}
	return battle, nil
}

func (s *service) HistoryFor(ctx context.Context, addr string, limit int) ([]models.PvpBattle, error) {
	canonical, err := address.Canonical(addr)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}
	battles, err := s.repo.ListByAddress(ctx, canonical, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load battle history")
	}
	return battles, nil
}
