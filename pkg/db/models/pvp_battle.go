package models

import (
	"time"

	"github.com/google/uuid"
)

// PvpBattle is the immutable outcome record of one resolved battle. Ledger
// entries reference it through battle_id.
type PvpBattle struct {
	ID              uuid.UUID    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AttackerAddress string       `gorm:"column:attacker_address;not null;index"`
	DefenderAddress string       `gorm:"column:defender_address;not null;index"`
	AttackerBase    int64        `gorm:"column:attacker_base;not null"`
	AttackerBooster int64        `gorm:"column:attacker_booster;not null"`
	AttackerTotal   int64        `gorm:"column:attacker_total;not null"`
	DefenderBase    int64        `gorm:"column:defender_base;not null"`
	DefenderBooster int64        `gorm:"column:defender_booster;not null"`
	DefenderTotal   int64        `gorm:"column:defender_total;not null"`
	WinnerAddress   string       `gorm:"column:winner_address;not null"`
	TransferPoints  int64        `gorm:"column:transfer_points;not null"`
	HousePoints     int64        `gorm:"column:house_points;not null"`
	Critical        bool         `gorm:"column:critical;not null;default:false"`
	Seed            int64        `gorm:"column:seed;not null"`
	Loot            []BattleLoot `gorm:"foreignKey:BattleID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time    `gorm:"column:created_at;autoCreateTime"`
}

func (PvpBattle) TableName() string {
	return "pvp_battles"
}
