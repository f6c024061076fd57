package main

import (
	stdtesting "testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-procure/internal/app"
	_ "github.com/odyssey-erp/odyssey-procure/testing"
)

func TestMainReturnsInTestMode(t *stdtesting.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
