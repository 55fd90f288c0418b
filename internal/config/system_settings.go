package config

import (
	"os"
	"strconv"
)

const DATABASE_TYPE = "DFLOW_DATABASE_TYPE"
const DATABASE_URL = "DFLOW_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "DFLOW_DATABASE_SQLLITE_FILE_NAME"
const ENGINE_SERVER_WEB_PORT = "DFLOW_ENGINE_SERVER_WEB_PORT"
const ENGINE_CHECK_DB_INTERVAL = "DFLOW_ENGINE_CHECK_DB_INTERVAL"
const ENGINE_STUCK_CONTINUATIONS_INTERVAL = "DFLOW_ENGINE_STUCK_CONTINUATIONS_INTERVAL"
const ENGINE_STUCK_REPAIR_AFTER_MINUTES = "DFLOW_ENGINE_STUCK_REPAIR_AFTER_MINUTES"
const ENGINE_BATCH_SIZE = "DFLOW_ENGINE_BATCH_SIZE"       //number of due continuations to pull from the database at a time
const ENGINE_EXECUTOR_SIZE = "DFLOW_ENGINE_EXECUTOR_SIZE" //number of workers ie the parallel nature of the jobs
const ENGINE_MAX_CHAIN_DEPTH = "DFLOW_ENGINE_MAX_CHAIN_DEPTH"
const ENGINE_ACTION_TIMEOUT = "DFLOW_ENGINE_ACTION_TIMEOUT"
const AMQP_URL = "DFLOW_AMQP_URL"
const AMQP_EXCHANGE = "DFLOW_AMQP_EXCHANGE"
const WEB_SESSION_EXPIRY_HOURS = "DFLOW_WEB_SESSION_EXPIRY_HOURS"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == ENGINE_CHECK_DB_INTERVAL {
		return "3s"
	}
	if settingKey == ENGINE_STUCK_CONTINUATIONS_INTERVAL {
		return "60s"
	}
	if settingKey == ENGINE_STUCK_REPAIR_AFTER_MINUTES {
		return "5"
	}
	if settingKey == ENGINE_BATCH_SIZE {
		return "5"
	}
	if settingKey == ENGINE_EXECUTOR_SIZE {
		return "5"
	}
	if settingKey == ENGINE_MAX_CHAIN_DEPTH {
		return "5"
	}
	if settingKey == ENGINE_ACTION_TIMEOUT {
		return "30s"
	}
	if settingKey == ENGINE_SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == AMQP_EXCHANGE {
		return "dealerflow.outbound"
	}
	if settingKey == WEB_SESSION_EXPIRY_HOURS {
		return "1"
	}
	if settingKey == DATABASE_SQLLITE_FILE_NAME {
		return "./dflow.db"
	}
	return ""
}
