package host_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/ffibridge/application/schema"
	"github.com/reglet-dev/ffibridge/domain/entities"
	"github.com/reglet-dev/ffibridge/host"
	"github.com/reglet-dev/ffibridge/infrastructure/parser"
	"github.com/stretchr/testify/suite"
)

// LoaderSuite tests the manifest pipeline from raw bytes to descriptors.
type LoaderSuite struct {
	suite.Suite
	loader   *host.Loader
	invokers schema.Invokers
}

func (s *LoaderSuite) SetupTest() {
	s.loader = host.NewLoader()
	noop := func(context.Context, any, entities.Args) (any, error) { return nil, nil }
	s.invokers = schema.Invokers{"Listener": {"on_event": noop}}
}

const listenerManifest = `
module: events
entry_prefix: ev_
callbacks:
  - name: Listener
    methods:
      - name: on_event
        params:
          - {name: name, type: string}
functions:
  - name: subscribe
    result: u64
    params:
      - {name: listener, type: callback Listener}
`

func (s *LoaderSuite) TestResolve() {
	b, err := s.loader.Resolve([]byte(listenerManifest), s.invokers)
	s.Require().NoError(err)

	s.Equal("events", b.Module)
	s.Require().Len(b.Functions, 1)
	s.Equal("ev_subscribe", b.Functions[0].Entry)
	s.Equal(entities.KindCallback, b.Functions[0].Params[0].Schema.Kind)
}

func (s *LoaderSuite) TestInvalidYAML() {
	_, err := s.loader.LoadManifest([]byte("module: [unterminated"))
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to parse manifest")
}

func (s *LoaderSuite) TestMissingInvoker() {
	_, err := s.loader.Resolve([]byte(listenerManifest), nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "manifest events")
	s.Contains(err.Error(), "no invoker")
}

func (s *LoaderSuite) TestCustomParser() {
	loader := host.NewLoader(host.WithParser(parser.NewTomlManifestParser()))
	m, err := loader.LoadManifest([]byte(`module = "toml_demo"`))
	s.Require().NoError(err)
	s.Equal("toml_demo", m.Module)
}

func (s *LoaderSuite) TestResolveFile() {
	path := filepath.Join(s.T().TempDir(), "bindings.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(listenerManifest), 0o600))

	b, err := host.ResolveFile(path, s.invokers)
	s.Require().NoError(err)
	s.Len(b.Callbacks, 1)

	_, err = host.ResolveFile(filepath.Join(s.T().TempDir(), "absent.yaml"), s.invokers)
	s.Require().Error(err)
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}
