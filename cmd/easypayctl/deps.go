package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cast"

	"easypay/app/repositories"
	"easypay/app/services/dashboard"
	paymentsvc "easypay/app/services/payment"
	"easypay/bootstrap"
	"easypay/pkg/config"
	"easypay/pkg/database"
	"easypay/pkg/logger"
)

// deps 按需初始化，token 命令只需要配置
type deps struct {
	env *string

	configOnce sync.Once
	dbOnce     sync.Once
	repo       *repositories.PaymentRepository
	service    *paymentsvc.Service
	closers    []func()
}

func (rt *deps) loadConfig() {
	rt.configOnce.Do(func() {
		config.InitConfig(*rt.env)
		bootstrap.SetupLogger()
	})
}

// payments 连接数据库并组装支付服务，事件同步派发
func (rt *deps) payments() *paymentsvc.Service {
	rt.loadConfig()
	rt.dbOnce.Do(func() {
		bootstrap.SetupDB()
		bus, closeEvents := bootstrap.SetupEvents()
		rt.closers = append(rt.closers, closeEvents, func() { logger.LogIf(database.Close()) })
		rt.repo = repositories.NewPaymentRepository(nil)
		rt.service = paymentsvc.NewService(rt.repo, bootstrap.SetupEasyPay(), bus)
	})
	return rt.service
}

// close 释放已初始化的连接，命令结束时调用
func (rt *deps) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func (rt *deps) repository() *repositories.PaymentRepository {
	rt.payments()
	return rt.repo
}

func (rt *deps) dashboard() *dashboard.Service {
	return dashboard.NewService(rt.repository())
}

func parseIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, arg := range args {
		id, err := cast.ToUint64E(arg)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid payment id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
