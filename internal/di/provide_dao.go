package di

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/stage-pipeline/internal/dao/itemdao"
	"github.com/savaki/stage-pipeline/internal/services"
)

// ProvideItemDAO returns the ledger table named in config, or the
// conventional table for env when none is configured
func ProvideItemDAO(env string, client *dynamodb.Client, config *services.Config) *itemdao.DAO {
	tableName := config.LedgerTable
	if tableName == "" {
		tableName = itemdao.TableName(env)
	}
	return itemdao.New(client, tableName)
}

// ProvideLedger records dispatches only when a ledger table is configured
func ProvideLedger(env string, client *dynamodb.Client, config *services.Config) itemdao.Ledger {
	if config.LedgerTable == "" {
		return itemdao.Nop{}
	}
	return ProvideItemDAO(env, client, config)
}
