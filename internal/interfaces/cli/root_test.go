package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TechIntel/internal/config"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/pkg/client"
	"github.com/turtacn/TechIntel/pkg/errors"
)

// fakeBackend serves canned status bodies.  Each technology walks through
// its queue of responses; the last one repeats.
type fakeBackend struct {
	mu         sync.Mutex
	responses  map[string][]*client.StatusResponse
	validation *client.Validation
	validErr   error
	queries    []string
}

func (b *fakeBackend) FetchTechnology(ctx context.Context, tech string) ([]byte, error) {
	resp, err := b.TechnologyStatus(ctx, tech)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, &client.APIError{StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (b *fakeBackend) TechnologyStatus(_ context.Context, tech string) (*client.StatusResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.responses[tech]
	if len(queue) == 0 {
		return &client.StatusResponse{StatusCode: 404}, nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		b.responses[tech] = queue[1:]
	}
	return resp, nil
}

func (b *fakeBackend) ValidateTechnology(_ context.Context, query string) (*client.Validation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, query)
	return b.validation, b.validErr
}

func ready(body string) *client.StatusResponse {
	return &client.StatusResponse{StatusCode: 200, Body: []byte(body)}
}

func backendDeps(b *fakeBackend) CommandDependencies {
	return CommandDependencies{
		NewBackend: func(*config.Config, logging.Logger) (Backend, error) { return b, nil },
	}
}

func execute(t *testing.T, deps CommandDependencies, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	RegisterCommands(root, deps)

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePayload(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewRootCommand_Flags(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "techintel", cmd.Use)
	for _, name := range []string{"config", "log-level", "output", "verbose", "timeout", "backend"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestRegisterCommands(t *testing.T) {
	root := NewRootCommand()
	RegisterCommands(root, CommandDependencies{})

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"compare", "track", "validate", "serve", "version"}, names)
}

func TestInitConfig_BackendOverride(t *testing.T) {
	cfg, err := initConfig(&RootOptions{BackendURL: "http://backend:9000"})
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.Backend.BaseURL)
	assert.Equal(t, config.DefaultCompareMaxTechnologies, cfg.Compare.MaxTechnologies)
}

func TestInitConfig_MissingFile(t *testing.T) {
	_, err := initConfig(&RootOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestInitConfig_File(t *testing.T) {
	path := writePayload(t, t.TempDir(), "techintel.yaml", "compare:\n  max_technologies: 3\n")
	cfg, err := initConfig(&RootOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Compare.MaxTechnologies)
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"name", "n"}, [][]string{{"quantum", "10"}, {"ai"}})
	want := "name     n \n" +
		"-------  --\n" +
		"quantum  10\n" +
		"ai         \n"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatTable(nil, nil))
}

func TestPrintResult_Formats(t *testing.T) {
	view := statusTable{}
	for _, format := range []string{"json", "table", "text"} {
		t.Run(format, func(t *testing.T) {
			cmd := &cobra.Command{}
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetContext(context.WithValue(context.Background(), cliContextKey{}, &CLIContext{OutputFormat: format}))

			require.NoError(t, PrintResult(cmd, view))
			if format == "json" {
				assert.Equal(t, "[]\n", out.String())
			} else {
				assert.True(t, strings.HasPrefix(out.String(), "technology"))
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	cmd := &cobra.Command{}
	var errOut bytes.Buffer
	cmd.SetErr(&errOut)

	PrintError(cmd, nil)
	assert.Empty(t, errOut.String())
	PrintError(cmd, errors.New(errors.ErrCodeValidation, "bad"))
	assert.Equal(t, "Error: [COMMON_010] bad\n", errOut.String())
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, CommandDependencies{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "techintel "+Version)

	out, err = execute(t, CommandDependencies{}, "version", "--json")
	require.NoError(t, err)
	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, client.Version, info.Client)
}

func TestServeCmd(t *testing.T) {
	var port int
	deps := CommandDependencies{
		Serve: func(_ context.Context, cfg *config.Config, _ logging.Logger) error {
			port = cfg.Server.Port
			return nil
		},
	}
	_, err := execute(t, deps, "serve", "--port", "9191")
	require.NoError(t, err)
	assert.Equal(t, 9191, port)

	_, err = execute(t, CommandDependencies{}, "serve")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotImplemented))
}

func TestValidateCmd(t *testing.T) {
	cases := []struct {
		name    string
		v       *client.Validation
		args    []string
		want    string
		errCode errors.ErrorCode
	}{
		{"accept", &client.Validation{Decision: client.DecisionAccept, Technology: "Quantum Computing"},
			[]string{"quantum", "computing"}, "accepted: Quantum Computing\n", ""},
		{"suggest", &client.Validation{Decision: client.DecisionNeedsConfirmation, Suggestion: "Quantum Computing"},
			[]string{"quantum computng"}, "did you mean \"Quantum Computing\"?\n", ""},
		{"reject", &client.Validation{Decision: client.DecisionReject, Message: "not a technology"},
			[]string{"banana"}, "rejected: not a technology\n", ""},
		{"strict reject", &client.Validation{Decision: client.DecisionReject},
			[]string{"--strict", "banana"}, "rejected: \"banana\" is not a technology\n", errors.ErrCodeTechnologyRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBackend{validation: tc.v}
			out, err := execute(t, backendDeps(b), append([]string{"validate"}, tc.args...)...)
			assert.Equal(t, tc.want, out)
			if tc.errCode == "" {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsCode(err, tc.errCode), "%v", err)
			}
		})
	}
}

func TestValidateCmd_BackendError(t *testing.T) {
	b := &fakeBackend{validErr: assert.AnError}
	_, err := execute(t, backendDeps(b), "validate", "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))

	_, err = execute(t, CommandDependencies{}, "validate", "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotImplemented))
}

func TestValidateCmd_JSON(t *testing.T) {
	b := &fakeBackend{validation: &client.Validation{Decision: client.DecisionAccept, Technology: "Robotics"}}
	out, err := execute(t, backendDeps(b), "validate", "-o", "json", "robotics")
	require.NoError(t, err)

	var v client.Validation
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "Robotics", v.Technology)
	assert.Equal(t, []string{"robotics"}, b.queries)
}

// fakeSource is an in-memory listing data source.
type fakeSource struct {
	snap payload.Snapshot
}

func (s fakeSource) LoadSnapshot(_ context.Context, techs ...string) (payload.Snapshot, error) {
	return s.snap.Select(techs...), nil
}

func (s fakeSource) List(context.Context) ([]string, error) {
	return s.snap.Names(), nil
}
