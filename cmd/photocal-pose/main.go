// Command photocal-pose is a thin CLI wrapper around the pose-recovery
// core: it reads a camera database, a named-point set, a camera instance
// description and a point-mapping set from disk, recovers the camera's
// pose, and prints the refined instance description to stdout. Argument
// parsing and file I/O are the only things this command does; the
// geometry itself lives entirely in internal/pose and its collaborators.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/meridian-optics/photocal/internal/camera"
	"github.com/meridian-optics/photocal/internal/points"
	"github.com/meridian-optics/photocal/internal/pose"
)

func main() {
	cdbPath := flag.String("cdb", "", "path to camera database JSON")
	npsPath := flag.String("nps", "", "path to named point set JSON")
	descPath := flag.String("camera", "", "path to camera instance description JSON")
	pmsPath := flag.String("mappings", "", "path to point mapping set JSON")
	maxIter := flag.Int("max-iterations", 50, "maximum refinement iterations")
	tol := flag.Float64("tol", 1e-9, "convergence tolerance on total squared error")
	flag.Parse()

	if *cdbPath == "" || *npsPath == "" || *descPath == "" || *pmsPath == "" {
		log.Fatal("photocal-pose: -cdb, -nps, -camera and -mappings are all required")
	}

	if err := run(*cdbPath, *npsPath, *descPath, *pmsPath, *maxIter, *tol); err != nil {
		log.Printf("photocal-pose: %v", err)
		os.Exit(1)
	}
}

func run(cdbPath, npsPath, descPath, pmsPath string, maxIter int, tol float64) error {
	cdbData, err := os.ReadFile(cdbPath)
	if err != nil {
		return fmt.Errorf("reading camera database: %w", err)
	}
	db, err := camera.LoadDatabase(cdbData)
	if err != nil {
		return err
	}

	npsData, err := os.ReadFile(npsPath)
	if err != nil {
		return fmt.Errorf("reading named point set: %w", err)
	}
	nps, err := points.LoadNamedPointSet(npsData)
	if err != nil {
		return err
	}

	descData, err := os.ReadFile(descPath)
	if err != nil {
		return fmt.Errorf("reading camera description: %w", err)
	}
	var desc camera.InstanceDesc
	if err := json.Unmarshal(descData, &desc); err != nil {
		return fmt.Errorf("decoding camera description: %w", err)
	}
	cam, err := db.FromDesc(desc)
	if err != nil {
		return err
	}

	pmsData, err := os.ReadFile(pmsPath)
	if err != nil {
		return fmt.Errorf("reading point mapping set: %w", err)
	}
	pms, warnings, err := points.LoadPointMappingSet(pmsData, nps)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Println("photocal-pose:", w)
	}

	result, err := pose.Recover(cam, pms, maxIter, tol)
	if err != nil {
		return err
	}
	log.Printf("photocal-pose: iterations=%d total-error=%g worst-error=%g (index %d)",
		result.Iterations, result.TotalError, result.WorstError, result.WorstIndex)

	out, err := json.MarshalIndent(cam.ToDesc(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding recovered camera: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
