package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	driverName = "nrpgx"

	connMaxIdleTime = time.Hour
	connMaxLifetime = time.Hour
)

// Config holds the connection settings for the account store database.
type Config struct {
	User               string `mapstructure:"user"`
	Host               string `mapstructure:"host"`
	Password           string `mapstructure:"password"`
	Port               int    `mapstructure:"port"`
	DbName             string `mapstructure:"dbname"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

func (c *Config) endpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewWithAwsIam opens a connection pool authenticated with an RDS IAM token
// instead of a password. Only provisioned Aurora clusters support this.
//
// https://docs.aws.amazon.com/AmazonRDS/latest/AuroraUserGuide/UsingWithRDS.IAMDBAuth.Connecting.Go.html
func NewWithAwsIam(ctx context.Context, conf *Config, awsConfig aws.Config) (*sql.DB, error) {
	rdsClient := rds.New(awsConfig)

	authToken, err := rdsutils.BuildAuthToken(conf.endpoint(), rdsClient.Region, conf.User, rdsClient.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "error building rds auth token")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		conf.Host, conf.Port, conf.User, authToken, conf.DbName,
	)
	return open(ctx, dsn, conf)
}

// NewWithUsernameAndPassword opens a connection pool using password
// authentication.
func NewWithUsernameAndPassword(ctx context.Context, conf *Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		conf.User, conf.Password, conf.endpoint(), conf.DbName,
	)
	return open(ctx, dsn, conf)
}

func open(ctx context.Context, dsn string, conf *Config) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error connecting to postgres")
	}

	if conf.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(conf.MaxOpenConnections)
	}
	if conf.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(conf.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}
