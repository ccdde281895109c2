package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/settle"
)

func TestParseRoles(t *testing.T) {
	assert.Equal(t, settle.Roles{"home": "w1", "away": "w2"}, parseRoles("Home=w1, away=w2,,junk"))
	assert.Empty(t, parseRoles(""))
}
