package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"crumarket/config"
	"crumarket/core/state"
	coretypes "crumarket/core/types"
	"crumarket/native/common"
	"crumarket/native/cruclub"
	"crumarket/native/payments"
	"crumarket/native/referral"
	"crumarket/native/sales"
	"crumarket/observability/logging"
	"crumarket/storage"
)

const persistInterval = 30 * time.Second

func main() {
	configFile := flag.String("config", "./market.toml", "Path to the policy file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	logger := logging.Setup("marketd", cfg.Environment)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager, err := state.LoadManager(db)
	if err != nil {
		logger.Error("Failed to load state", slog.Any("error", err))
		os.Exit(1)
	}

	engines, err := buildEngines(cfg, manager)
	if err != nil {
		logger.Error("Failed to wire engines", slog.Any("error", err))
		os.Exit(1)
	}
	manager.Commit()
	if err := manager.Persist(db); err != nil {
		logger.Error("Failed to persist seeded state", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: newRouter(engines, cfg.RequestsPerMinute),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("marketd listening", slog.String("addr", cfg.ListenAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	ticker := time.NewTicker(persistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			manager.Commit()
			if err := manager.Persist(db); err != nil {
				logger.Error("Periodic persist failed", slog.Any("error", err))
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = server.Shutdown(shutdownCtx)
			cancel()
			manager.Commit()
			if err := manager.Persist(db); err != nil {
				logger.Error("Final persist failed", slog.Any("error", err))
			}
			logger.Info("marketd stopped")
			return
		}
	}
}

type engineSet struct {
	payments  *payments.Engine
	referral  *referral.Engine
	sales     *sales.Engine
	club      *cruclub.Engine
	telemetry *telemetryEmitter
}

// moduleAddress derives the deterministic delegate address an engine uses
// when driving engine-to-engine calls.
func moduleAddress(name string) [20]byte {
	digest := ethcrypto.Keccak256([]byte("crumarket/module/" + name))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

func buildEngines(cfg *config.Config, manager *state.Manager) (*engineSet, error) {
	roles, err := cfg.RoleAddresses()
	if err != nil {
		return nil, err
	}
	for role, addr := range roles {
		manager.SetRoleAddress(role, addr)
	}

	telemetry := newTelemetryEmitter()

	pay := payments.NewEngine(manager, manager)
	pay.SetState(manager)
	pay.SetEmitter(telemetry)
	pay.SetPauses(manager)

	ref := referral.NewEngine(manager, pay)
	ref.SetState(manager)
	ref.SetEmitter(telemetry)
	ref.SetPauses(manager)
	refModule := moduleAddress("referral")
	ref.SetModuleAddress(refModule)
	manager.GrantRole("delegate", refModule)

	market := sales.NewEngine(manager, manager, manager, manager, manager, pay, ref)
	market.SetState(manager)
	market.SetEmitter(telemetry)
	market.SetPauses(manager)
	market.SetAuthorizer(common.NewAuthorizer(manager))
	salesModule := moduleAddress("sales")
	market.SetModuleAddress(salesModule)
	manager.GrantRole("delegate", salesModule)

	club := cruclub.NewEngine(manager)
	club.SetState(manager)
	club.SetEmitter(telemetry)
	club.SetPauses(manager)

	set := &engineSet{payments: pay, referral: ref, sales: market, club: club, telemetry: telemetry}
	if err := seedPolicy(cfg, set, roles); err != nil {
		return nil, err
	}
	return set, nil
}

// seedPolicy pushes the configured marketplace parameters through the
// admin-gated engine setters, so the same validation runs at startup as at
// runtime. Without a configured admin the engines keep their defaults.
func seedPolicy(cfg *config.Config, set *engineSet, roles map[string][20]byte) error {
	admin, ok := roles[common.RoleAdmin]
	if !ok {
		return nil
	}

	feeCfg := payments.FeeConfig{
		BuyPermille:  uint32(cfg.Fees.BuyPermille),
		SellPermille: uint32(cfg.Fees.SellPermille),
		TreasuryPct:  uint32(cfg.Fees.TreasuryPct),
		BrandPct:     uint32(cfg.Fees.BrandPct),
		StakingPct:   uint32(cfg.Fees.StakingPct),
		MaxFeeCapPct: uint32(cfg.Fees.MaxFeeCapPct),
		FiatFeePct:   uint32(cfg.Fees.FiatFeePct),
		CRUPerUSD:    uint64(cfg.Fees.CRUPerUSD),
	}
	if err := set.payments.SetFeeConfig(admin, feeCfg); err != nil {
		return err
	}
	for op, fee := range cfg.ServiceFees {
		operation, err := serviceOperation(op)
		if err != nil {
			return err
		}
		if err := set.payments.SetServiceFee(admin, operation, big.NewInt(fee)); err != nil {
			return err
		}
	}
	discounts, err := cfg.TierDiscounts()
	if err != nil {
		return err
	}
	for tier, permille := range discounts {
		if err := set.payments.SetDiscount(admin, tier, uint32(permille)); err != nil {
			return err
		}
	}

	if err := set.sales.SetScheduleDay(admin, uint8(cfg.Schedule.ScheduleDay)); err != nil {
		return err
	}
	for key, seconds := range cfg.Schedule.Delays {
		if err := set.sales.SetDelay(admin, key, seconds); err != nil {
			return err
		}
	}
	for key, seconds := range cfg.Schedule.Durations {
		if err := set.sales.SetDuration(admin, key, seconds); err != nil {
			return err
		}
	}
	priorities, err := cfg.TierPriorities()
	if err != nil {
		return err
	}
	for tier, seconds := range priorities {
		if err := set.sales.SetPriority(admin, tier, seconds); err != nil {
			return err
		}
	}
	if err := set.sales.SetReferralRewardPermille(admin, uint32(cfg.Referral.RewardPermille)); err != nil {
		return err
	}

	return set.club.SetUnstakeDelay(admin, cfg.Club.UnstakeDelaySeconds)
}

func serviceOperation(tag string) (payments.Operation, error) {
	switch tag {
	case "list":
		return payments.OpList, nil
	case "buy":
		return payments.OpBuy, nil
	case "withdraw":
		return payments.OpWithdraw, nil
	case "renew":
		return payments.OpRenew, nil
	case "featured":
		return payments.OpFeatured, nil
	default:
		return "", fmt.Errorf("unknown service fee operation %q", tag)
	}
}

type statusReport struct {
	Fees         payments.FeeConfig `json:"fees"`
	Schedule     scheduleReport     `json:"schedule"`
	Club         clubReport         `json:"club"`
	RecentEvents []*coretypes.Event `json:"recentEvents"`
}

type scheduleReport struct {
	ScheduleDay uint8            `json:"scheduleDay"`
	Delays      map[string]int64 `json:"delays"`
	Durations   map[string]int64 `json:"durations"`
	Priorities  map[uint8]int64  `json:"priorities"`
}

type clubReport struct {
	RedemptionRate string `json:"redemptionRate"`
	StakingSupply  string `json:"stakingSupply"`
}

func (s *engineSet) status() statusReport {
	schedule := s.sales.ScheduleView()
	report := statusReport{
		Fees: s.payments.FeeConfigView(),
		Schedule: scheduleReport{
			ScheduleDay: schedule.ScheduleDay,
			Delays:      schedule.Delays,
			Durations:   schedule.Durations,
			Priorities:  schedule.Priorities,
		},
	}
	report.Club.RedemptionRate = s.club.Rate().String()
	if supply, err := s.club.StakingSupply(); err == nil {
		report.Club.StakingSupply = supply.String()
	}
	report.RecentEvents = s.telemetry.Recent()
	return report
}
