package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"index", "create"},
		{"migrate"},
		{"reconcile", "upload"},
		{"upload"},
		{"watch"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestArgValidation(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"upload", "only-id"})
	assert.Error(t, root.Execute())

	root = newRootCommand()
	root.SetArgs([]string{"reconcile", "upload"})
	assert.Error(t, root.Execute())
}
