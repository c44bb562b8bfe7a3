package main

import (
	"fmt"

	"github.com/OCAP2/tiptrails/internal/behavior"
	"github.com/OCAP2/tiptrails/internal/config"
	"github.com/OCAP2/tiptrails/internal/matcher"
	"github.com/OCAP2/tiptrails/internal/motion"
	"github.com/OCAP2/tiptrails/internal/registry"
	"github.com/OCAP2/tiptrails/internal/scene"
	"github.com/OCAP2/tiptrails/internal/scene/memscene"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// registryMode resolves scan.mode. An empty mode follows provider.enabled.
func registryMode(mode string, providerEnabled bool) (registry.Mode, error) {
	switch registry.Mode(mode) {
	case "":
		if providerEnabled {
			return registry.ModeProvider, nil
		}
		return registry.ModeHierarchy, nil
	case registry.ModeHierarchy, registry.ModeManual, registry.ModeProvider:
		return registry.Mode(mode), nil
	default:
		return "", fmt.Errorf("unknown scan mode %q, expected hierarchy, manual or provider", mode)
	}
}

// behaviorConfig maps the loaded settings onto the behaviour. Structural
// endpoints are searched below root; provider bundles hang off owner.
func behaviorConfig(host config.HostConfig, scn *memscene.Scene, root, owner core.NodeHandle) (behavior.Config, error) {
	trail := config.GetTrailConfig()
	scan := config.GetScanConfig()
	life := config.GetLifecycleConfig()
	pc := config.GetProviderConfig()

	mode, err := registryMode(scan.Mode, pc.Enabled)
	if err != nil {
		return behavior.Config{}, err
	}

	rc := registry.DefaultConfig()
	rc.Mode = mode
	rc.Root = root
	rc.Owner = owner
	if mode == registry.ModeManual {
		for _, p := range scan.ManualNodes {
			h, ok := scn.Find(root, p)
			if !ok {
				return behavior.Config{}, fmt.Errorf("manual node %q not found", p)
			}
			rc.Manual = append(rc.Manual, h)
		}
	}
	rc.Rules = matcher.Rules{
		Mode:             matcher.Mode(scan.MatchMode),
		TipWords:         scan.TipWords,
		LimbWords:        scan.LimbWords,
		Pattern:          scan.Pattern,
		ContainerWords:   scan.ContainerWords,
		MaxAncestorHops:  scan.MaxAncestorHops,
		RequireContainer: scan.RequireContainer,
	}
	rc.AutoScan = scan.AutoScan
	rc.RescanInterval = scan.RescanInterval
	rc.MinEndpoints = scan.MinEndpoints
	rc.LogFound = scan.LogFound

	rc.CompensateParentScale = trail.CompensateParentScale
	rc.WidthInPixels = trail.WidthInPixels
	rc.PixelWidth = trail.PixelWidth
	if trail.WidthInPixels {
		cc := config.GetCameraConfig()
		cam := scene.Camera{Position: cc.Position, FieldOfView: cc.FieldOfView, PixelHeight: cc.PixelHeight}
		rc.Camera = func() (scene.Camera, bool) { return cam, cam.PixelHeight > 0 }
	}

	rc.UnitScale = pc.UnitScale
	rc.LeftHand = pc.LeftHand
	rc.RightHand = pc.RightHand
	rc.Grace = pc.Grace
	rc.WidthBySpeed = pc.WidthBySpeed
	rc.Width = motion.WidthRange{
		SpeedMin:   pc.SpeedMin,
		SpeedMax:   pc.SpeedMax,
		StartWidth: pc.StartWidth,
		Scale:      pc.WidthScale,
	}

	return behavior.Config{
		Registry:        rc,
		Style:           config.GetStyle(),
		Persist:         life.Persist,
		SpawnInEditMode: life.SpawnInEditMode,
		SessionName:     host.SessionName,
		Version:         CurrentVersion,
	}, nil
}
