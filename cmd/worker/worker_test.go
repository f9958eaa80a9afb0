package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/spinwin-backend/internal/config"
)

func TestCheckConfig(t *testing.T) {
	tests := []struct {
		name    string
		queue   string
		replica string
		wantErr bool
	}{
		{"amqp with postgres", "amqp", "postgres", false},
		{"amqp with redis", "amqp", "redis", false},
		{"in-memory queue", "memory", "postgres", true},
		{"no replica", "amqp", "none", true},
		{"process-local replica", "amqp", "memory", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Queue.Driver = tt.queue
			cfg.Replica.Driver = tt.replica

			err := checkConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
