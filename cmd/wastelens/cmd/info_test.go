package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoCommand_Text(t *testing.T) {
	res := execute(t, "info", "--model", colorModel(t))
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Model:    color-test")
	assert.Contains(t, res.stdout, "Backend:  native")
	assert.Contains(t, res.stdout, "Input:    150x150x3")
	assert.Contains(t, res.stdout, "  conv2d_1  (last_conv)\n")
	assert.Contains(t, res.stdout, "  max_pooling2d\n")
}

func TestInfoCommand_JSON(t *testing.T) {
	res := execute(t, "info", "--model", colorModel(t), "--json")
	require.NoError(t, res.err)

	var info model.Info
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, "conv2d_1", info.LastConv)
	assert.Equal(t, []string{"conv2d", "max_pooling2d", "conv2d_1", "global_average_pooling2d", "dense"}, info.Layers)
}

func TestInfoCommand_MissingModel(t *testing.T) {
	res := execute(t, "info", "--model", filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, res.err)
	var le *model.LoadError
	assert.ErrorAs(t, res.err, &le)
}
