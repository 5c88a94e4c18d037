package integration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"

	"github.com/objperms/objperms/pkg/server/middleware"
)

// gatedSessionSecret signs sessions for the per-scenario gated server.
const gatedSessionSecret = "integration-session-secret"

// RegisterSessionSteps registers steps covering the session gate.
func (s *StepsContext) RegisterSessionSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a session-gated panel server is running$`, s.aSessionGatedServerIsRunning)
	sc.Step(`^I request the panel for ([a-z][a-z0-9_]*) (\d+) without a session$`, s.iRequestThePanelWithoutASession)
	sc.Step(`^I request the panel for ([a-z][a-z0-9_]*) (\d+) with a session for "([^"]*)"$`, s.iRequestThePanelWithASessionFor)
	sc.Step(`^I request the panel for ([a-z][a-z0-9_]*) (\d+) with an expired session for "([^"]*)"$`, s.iRequestThePanelWithAnExpiredSessionFor)

	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if s.gated != nil {
			s.gated.Stop()
			s.gated = nil
		}
		return ctx, nil
	})
}

func (s *StepsContext) aSessionGatedServerIsRunning() error {
	if s.gated != nil {
		return nil
	}

	instance, err := StartServer(s.tc, ServerConfig{SessionSecret: gatedSessionSecret})
	if err != nil {
		return err
	}
	s.gated = instance
	return nil
}

func (s *StepsContext) gatedPanelURL(objKind string, objID int) (string, error) {
	if s.gated == nil {
		return "", fmt.Errorf("no session-gated server is running")
	}
	return fmt.Sprintf("%s/panel/%s/%d", s.gated.ServerURL, objKind, objID), nil
}

func (s *StepsContext) iRequestThePanelWithoutASession(objKind string, objID int) error {
	u, err := s.gatedPanelURL(objKind, objID)
	if err != nil {
		return err
	}
	return s.get(u)
}

func (s *StepsContext) iRequestThePanelWithASessionFor(objKind string, objID int, username string) error {
	return s.requestWithSession(objKind, objID, username, time.Hour)
}

func (s *StepsContext) iRequestThePanelWithAnExpiredSessionFor(objKind string, objID int, username string) error {
	return s.requestWithSession(objKind, objID, username, -time.Minute)
}

func (s *StepsContext) requestWithSession(objKind string, objID int, username string, ttl time.Duration) error {
	u, err := s.gatedPanelURL(objKind, objID)
	if err != nil {
		return err
	}

	token, err := middleware.NewSessionAuthenticator(gatedSessionSecret).Mint(username, ttl)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return err
	}
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token})
	return s.do(req)
}
