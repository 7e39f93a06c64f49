package main

import (
	"liveshop/cmd/server/config"
	"liveshop/internal/lock"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog"
)

func buildLocker(logger zerolog.Logger) (lock.Locker, func(), error) {
	cfg, err := config.LoadZooKeeper()
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.Servers) == 0 {
		logger.Warn().Msg("ZK_SERVERS not set, using in-process locker; safe only for a single instance")
		return lock.NewLocalLocker(), func() {}, nil
	}

	conn, _, err := zk.Connect(cfg.Servers, cfg.SessionTimeout)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewZooKeeperLocker(conn, cfg.Root), func() { conn.Close() }, nil
}
