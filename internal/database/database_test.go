package database

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestGormLevel(t *testing.T) {
	assert.Equal(t, logger.Info, gormLevel(logrus.TraceLevel))
	assert.Equal(t, logger.Info, gormLevel(logrus.DebugLevel))
	assert.Equal(t, logger.Warn, gormLevel(logrus.InfoLevel))
	assert.Equal(t, logger.Warn, gormLevel(logrus.WarnLevel))
	assert.Equal(t, logger.Error, gormLevel(logrus.ErrorLevel))
}
