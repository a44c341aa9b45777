/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/openrefine/refine-core/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	EnvPrefix = "REFINE_"

	defaultHTTPPort            = 3333
	defaultHTTPReadTimeoutMs   = 30 * 1000
	defaultHTTPWriteTimeoutMs  = 60 * 1000
	defaultDataDir             = "/tmp/refine/data"
	defaultChangeDataFile      = "changedata.db"
	defaultEtcdCallTimeoutMs   = 5 * 1000
	defaultEtcdRootPath        = "/refine"
	defaultIDAllocStep         = 100
	defaultProcessWorkers      = 4
	defaultMaxLatestErrors     = 32
	defaultFlushEveryRows      = 100
	defaultCSRFTokenTTLSec     = 60 * 60
	defaultCSRFCacheSize       = 4096
	defaultFetchDelayMs        = 500
	defaultFetchTimeoutMs      = 5 * 1000
	defaultFlowLimiterRate     = 1000
	defaultFlowLimiterBurst    = 10 * 1000
	defaultFlowLimiterEnabled  = false
	defaultGracefulStopTimeout = 10 * 1000
)

type LimiterConfig struct {
	// Limit is the updated rate of tokens.
	Limit int `toml:"limit" env:"LIMIT" json:"limit"`
	// Burst is the maximum number of tokens.
	Burst int `toml:"burst" env:"BURST" json:"burst"`
	// Enable is used to control the switch of the limiter.
	Enable bool `toml:"enable" env:"ENABLE" json:"enable"`
}

type EtcdConfig struct {
	// Endpoints of an external etcd cluster, comma separated. Projects are kept in memory only when empty.
	Endpoints     string `toml:"endpoints" env:"ENDPOINTS" json:"endpoints"`
	RootPath      string `toml:"root-path" env:"ROOT_PATH" json:"root-path"`
	CallTimeoutMs int64  `toml:"call-timeout-ms" env:"CALL_TIMEOUT_MS" json:"call-timeout-ms"`
	IDAllocStep   uint   `toml:"id-alloc-step" env:"ID_ALLOC_STEP" json:"id-alloc-step"`
}

type ProcessConfig struct {
	Workers         int `toml:"workers" env:"WORKERS" json:"workers"`
	MaxLatestErrors int `toml:"max-latest-errors" env:"MAX_LATEST_ERRORS" json:"max-latest-errors"`
	// FlushEveryRows is the number of rows computed between two writes of change data.
	FlushEveryRows int `toml:"flush-every-rows" env:"FLUSH_EVERY_ROWS" json:"flush-every-rows"`
}

type CSRFConfig struct {
	TokenTTLSec int64 `toml:"token-ttl-sec" env:"TOKEN_TTL_SEC" json:"token-ttl-sec"`
	CacheSize   int   `toml:"cache-size" env:"CACHE_SIZE" json:"cache-size"`
}

type FetchConfig struct {
	DelayMs   int `toml:"delay-ms" env:"DELAY_MS" json:"delay-ms"`
	TimeoutMs int `toml:"timeout-ms" env:"TIMEOUT_MS" json:"timeout-ms"`
}

type Config struct {
	Log log.Config `toml:"log" envPrefix:"LOG_" json:"log"`

	HTTPPort              int   `toml:"http-port" env:"HTTP_PORT" json:"http-port"`
	HTTPReadTimeoutMs     int64 `toml:"http-read-timeout-ms" env:"HTTP_READ_TIMEOUT_MS" json:"http-read-timeout-ms"`
	HTTPWriteTimeoutMs    int64 `toml:"http-write-timeout-ms" env:"HTTP_WRITE_TIMEOUT_MS" json:"http-write-timeout-ms"`
	GracefulStopTimeoutMs int64 `toml:"graceful-stop-timeout-ms" env:"GRACEFUL_STOP_TIMEOUT_MS" json:"graceful-stop-timeout-ms"`

	// DataDir holds the change data store. Change data is kept in memory when empty.
	DataDir        string `toml:"data-dir" env:"DATA_DIR" json:"data-dir"`
	ChangeDataFile string `toml:"change-data-file" env:"CHANGE_DATA_FILE" json:"change-data-file"`

	Etcd        EtcdConfig    `toml:"etcd" envPrefix:"ETCD_" json:"etcd"`
	Process     ProcessConfig `toml:"process" envPrefix:"PROCESS_" json:"process"`
	CSRF        CSRFConfig    `toml:"csrf" envPrefix:"CSRF_" json:"csrf"`
	Fetch       FetchConfig   `toml:"fetch" envPrefix:"FETCH_" json:"fetch"`
	FlowLimiter LimiterConfig `toml:"flow-limiter" envPrefix:"FLOW_LIMITER_" json:"flow-limiter"`
}

func (c *Config) HTTPReadTimeout() time.Duration {
	return time.Duration(c.HTTPReadTimeoutMs) * time.Millisecond
}

func (c *Config) HTTPWriteTimeout() time.Duration {
	return time.Duration(c.HTTPWriteTimeoutMs) * time.Millisecond
}

func (c *Config) GracefulStopTimeout() time.Duration {
	return time.Duration(c.GracefulStopTimeoutMs) * time.Millisecond
}

func (c *Config) EtcdCallTimeout() time.Duration {
	return time.Duration(c.Etcd.CallTimeoutMs) * time.Millisecond
}

func (c *Config) CSRFTokenTTL() time.Duration {
	return time.Duration(c.CSRF.TokenTTLSec) * time.Second
}

// EtcdEndpoints returns nil when no etcd cluster is configured.
func (c *Config) EtcdEndpoints() []string {
	var endpoints []string
	for _, e := range strings.Split(c.Etcd.Endpoints, ",") {
		if e = strings.TrimSpace(e); len(e) > 0 {
			endpoints = append(endpoints, e)
		}
	}
	return endpoints
}

// ChangeDataPath returns an empty path when change data is kept in memory.
func (c *Config) ChangeDataPath() string {
	if len(c.DataDir) == 0 {
		return ""
	}
	return filepath.Join(c.DataDir, c.ChangeDataFile)
}

// ValidateAndAdjust validates the config fields and adjusts some fields which should be adjusted.
// Return error if any field is invalid.
func (c *Config) ValidateAndAdjust() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return ErrInvalidConfig.WithMessagef("http port out of range, port:%d", c.HTTPPort)
	}
	if c.Process.Workers <= 0 {
		return ErrInvalidConfig.WithMessagef("process workers must be positive, workers:%d", c.Process.Workers)
	}
	if c.Process.FlushEveryRows <= 0 {
		c.Process.FlushEveryRows = defaultFlushEveryRows
	}
	if c.Process.MaxLatestErrors <= 0 {
		c.Process.MaxLatestErrors = defaultMaxLatestErrors
	}
	if c.CSRF.TokenTTLSec <= 0 {
		return ErrInvalidConfig.WithMessagef("csrf token ttl must be positive, ttl:%d", c.CSRF.TokenTTLSec)
	}
	if c.CSRF.CacheSize <= 0 {
		c.CSRF.CacheSize = defaultCSRFCacheSize
	}
	if len(c.DataDir) > 0 && len(c.ChangeDataFile) == 0 {
		c.ChangeDataFile = defaultChangeDataFile
	}
	if c.Etcd.IDAllocStep == 0 {
		c.Etcd.IDAllocStep = defaultIDAllocStep
	}
	if c.Fetch.DelayMs < 0 || c.Fetch.TimeoutMs < 0 {
		return ErrInvalidConfig.WithMessagef("negative fetch delay or timeout, delay:%d, timeout:%d", c.Fetch.DelayMs, c.Fetch.TimeoutMs)
	}
	return nil
}

// Parser builds the config from the flags, the config file and the environment, in this order of
// increasing precedence.
type Parser struct {
	flagSet        *flag.FlagSet
	cfg            *Config
	configFilePath string
}

func (p *Parser) Parse(arguments []string) (*Config, error) {
	if err := p.flagSet.Parse(arguments); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelpRequested.WithCause(err)
		}
		return nil, ErrInvalidCommandArgs.WithCausef(err, "original arguments:%v", arguments)
	}
	return p.cfg, nil
}

// ParseConfigFromToml overrides the config with the file given by the -config flag.
func (p *Parser) ParseConfigFromToml() error {
	if len(p.configFilePath) == 0 {
		log.Info("no config file specified")
		return nil
	}
	log.Info("load config from toml file", zap.String("path", p.configFilePath))

	data, err := os.ReadFile(p.configFilePath)
	if err != nil {
		return ErrReadConfigFile.WithCausef(err, "path:%s", p.configFilePath)
	}
	if err := toml.Unmarshal(data, p.cfg); err != nil {
		return ErrInvalidConfig.WithCausef(err, "path:%s", p.configFilePath)
	}
	return nil
}

// ParseConfigFromEnv overrides the config with the environment variables prefixed by EnvPrefix.
func (p *Parser) ParseConfigFromEnv() error {
	if err := env.Parse(p.cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return ErrInvalidConfig.WithCausef(err, "parse env")
	}
	return nil
}

func MakeConfigParser() (*Parser, error) {
	fs, cfg := flag.NewFlagSet("refine-core", flag.ContinueOnError), &Config{}
	builder := &Parser{
		flagSet:        fs,
		cfg:            cfg,
		configFilePath: "",
	}

	fs.StringVar(&builder.configFilePath, "config", "", "config file path")

	fs.StringVar(&cfg.Log.Level, "log-level", log.DefaultLogLevel, "level of the log")
	fs.StringVar(&cfg.Log.File, "log-file", log.DefaultLogFile, "file for log output")
	fs.StringVar(&cfg.Log.Encoding, "log-encoding", log.DefaultLogEncoding, "encoding of the log, console or json")

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "port of the http service")
	fs.Int64Var(&cfg.HTTPReadTimeoutMs, "http-read-timeout-ms", defaultHTTPReadTimeoutMs, "timeout for reading http requests")
	fs.Int64Var(&cfg.HTTPWriteTimeoutMs, "http-write-timeout-ms", defaultHTTPWriteTimeoutMs, "timeout for writing http responses")
	fs.Int64Var(&cfg.GracefulStopTimeoutMs, "graceful-stop-timeout-ms", defaultGracefulStopTimeout, "timeout for stopping the processes on shutdown")

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "directory of the change data store, empty to keep change data in memory")
	fs.StringVar(&cfg.ChangeDataFile, "change-data-file", defaultChangeDataFile, "file name of the change data store")

	fs.StringVar(&cfg.Etcd.Endpoints, "etcd-endpoints", "", "comma separated etcd endpoints, empty to keep projects in memory")
	fs.StringVar(&cfg.Etcd.RootPath, "etcd-root-path", defaultEtcdRootPath, "root path of the keys in etcd")
	fs.Int64Var(&cfg.Etcd.CallTimeoutMs, "etcd-call-timeout-ms", defaultEtcdCallTimeoutMs, "timeout for calling etcd")
	fs.UintVar(&cfg.Etcd.IDAllocStep, "etcd-id-alloc-step", defaultIDAllocStep, "number of ids reserved at once in etcd")

	fs.IntVar(&cfg.Process.Workers, "process-workers", defaultProcessWorkers, "number of processes running at the same time in a project")
	fs.IntVar(&cfg.Process.MaxLatestErrors, "process-max-latest-errors", defaultMaxLatestErrors, "number of process failures kept for reporting")
	fs.IntVar(&cfg.Process.FlushEveryRows, "process-flush-every-rows", defaultFlushEveryRows, "rows computed between two writes of change data")

	fs.Int64Var(&cfg.CSRF.TokenTTLSec, "csrf-token-ttl-sec", defaultCSRFTokenTTLSec, "lifetime of a csrf token")
	fs.IntVar(&cfg.CSRF.CacheSize, "csrf-cache-size", defaultCSRFCacheSize, "max number of live csrf tokens")

	fs.IntVar(&cfg.Fetch.DelayMs, "fetch-delay-ms", defaultFetchDelayMs, "default delay between two fetched urls")
	fs.IntVar(&cfg.Fetch.TimeoutMs, "fetch-timeout-ms", defaultFetchTimeoutMs, "default timeout of a fetched url")

	fs.IntVar(&cfg.FlowLimiter.Limit, "flow-limiter-limit", defaultFlowLimiterRate, "rate of requests per second")
	fs.IntVar(&cfg.FlowLimiter.Burst, "flow-limiter-burst", defaultFlowLimiterBurst, "burst of requests")
	fs.BoolVar(&cfg.FlowLimiter.Enable, "flow-limiter-enable", defaultFlowLimiterEnabled, "whether the flow limiter is enabled")

	return builder, nil
}
