package mcp

import (
	"context"
	"fmt"

	"apexsim/internal/lineup"
	"apexsim/internal/orchestrator"
	"apexsim/internal/simulation"
)

func (s *Server) dispatch(name string, args map[string]interface{}) (interface{}, error) {
	switch name {
	case "run_simulation":
		return s.handleRunSimulation(args)
	case "simulation_status":
		return s.handleStatus()
	case "cancel_simulation":
		s.orch.Cancel()
		return map[string]interface{}{"cancellationRequested": true}, nil
	case "simulation_history":
		return s.orch.History(), nil
	case "refresh_factors":
		return s.orch.RefreshFactors(context.Background())
	case "list_factors":
		return s.orch.Factors(), nil
	case "set_factor_enabled":
		id, _ := args["factor_id"].(string)
		enabled, _ := args["enabled"].(bool)
		if err := s.orch.SetFactorEnabled(id, enabled); err != nil {
			return nil, err
		}
		return map[string]interface{}{"factorId": id, "enabled": enabled}, nil
	case "export_lineup":
		return s.handleExportLineup()
	default:
		return nil, fmt.Errorf("tool not found: %s", name)
	}
}

func (s *Server) handleRunSimulation(args map[string]interface{}) (interface{}, error) {
	csvData, _ := args["csv"].(string)
	drivers, err := lineup.ParseCSV(csvData)
	if err != nil {
		return nil, err
	}

	raceCtx := simulation.RaceContext{
		TrackProfile: simulation.TrackProfile(stringArg(args, "track_profile")),
		Weather:      simulation.Weather(stringArg(args, "weather")),
		TyreStress:   simulation.TyreStress(stringArg(args, "tyre_stress")),
		SafetyCar:    simulation.SafetyCar(stringArg(args, "safety_car")),
		Runs:         intArg(args, "runs", 5000),
		Randomness:   floatArg(args, "randomness", 0.5),
	}
	if v, ok := args["seed"].(float64); ok {
		seed := int64(v)
		raceCtx.Seed = &seed
	}

	facs := s.orch.Factors()
	if use, ok := args["use_factors"].(bool); ok && !use {
		facs = nil
	}

	run, err := s.orch.Submit(drivers, raceCtx, facs)
	if err != nil {
		return nil, err
	}

	wait := true
	if w, ok := args["wait"].(bool); ok {
		wait = w
	}
	if !wait {
		return run, nil
	}

	s.orch.Wait()
	final := s.orch.CurrentRun()
	if final == nil {
		return nil, fmt.Errorf("run %s disappeared", run.ID)
	}
	if final.Status != orchestrator.StatusCompleted {
		return nil, fmt.Errorf("simulation %s: %s", final.Status, final.Message)
	}
	return final.Result, nil
}

func (s *Server) handleStatus() (interface{}, error) {
	status := map[string]interface{}{}
	if p, ok := s.orch.Progress(); ok {
		status["progress"] = p
	} else {
		status["progress"] = nil
	}
	if run := s.orch.CurrentRun(); run != nil {
		status["runId"] = run.ID
		status["status"] = run.Status
		status["startedAt"] = run.StartedAt
		if run.Message != "" {
			status["message"] = run.Message
		}
	}
	return status, nil
}

func (s *Server) handleExportLineup() (interface{}, error) {
	run := s.orch.CurrentRun()
	if run == nil {
		return nil, fmt.Errorf("no simulation has been run yet")
	}
	return lineup.ExportCSV(run.Lineup), nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func floatArg(args map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}
