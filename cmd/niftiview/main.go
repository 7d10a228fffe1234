package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"niftiview/internal/models"
	"niftiview/pkg/config"
	"niftiview/pkg/mapping"
	"niftiview/pkg/nifti"
	"niftiview/pkg/render"
	"niftiview/pkg/viewport"
	"niftiview/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "NIfTI volume to load (.nii or .nii.gz)")
	overlayFile := flag.String("overlay", "", "Optional overlay volume composited on top of the input")
	configPath := flag.String("config", "niftiview.yaml", "Viewer configuration file")
	planeName := flag.String("plane", "", "View plane: axial, sagittal or coronal (default: from config)")
	sliceIndex := flag.Int("slice", -1, "Slice index to export (default: middle slice)")
	exportAll := flag.Bool("all", false, "Export every slice of the selected plane")
	outputDir := flag.String("output", "", "Output directory for exported slices (default: from config)")
	probe := flag.String("probe", "", "Voxel to report as \"i,j,k\" (prints world position and intensity)")
	flag.Parse()

	// Validate inputs
	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *planeName == "" {
		*planeName = cfg.Display.Plane
	}
	if *outputDir == "" {
		*outputDir = cfg.Export.Directory
	}

	plane, err := models.ParseViewPlane(*planeName)
	if err != nil {
		log.Fatalf("Invalid plane: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("NIFTIVIEW - ORIENTATION-AWARE VOLUME SLICE VIEWER")
	fmt.Println("================================")

	// Load and canonicalize the volume
	fmt.Printf("Loading %s...\n", *inputFile)
	vol, err := nifti.Load(*inputFile)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	if err := vol.AutoWindow(cfg.Window.LowPercentile, cfg.Window.HighPercentile); err != nil {
		log.Fatalf("Failed to window volume: %v", err)
	}

	nx, ny, nz := vol.Shape()
	spacing := vol.Spacing()
	fmt.Printf("Shape:       (%d, %d, %d) voxels\n", nx, ny, nz)
	fmt.Printf("Spacing:     (%.3f, %.3f, %.3f) mm\n", spacing[0], spacing[1], spacing[2])
	fmt.Printf("Orientation: %s (%s source type)\n", vol.Codes(), vol.SourceType)
	fmt.Printf("Intensity:   [%g, %g], window [%g, %g]\n",
		vol.DataMin(), vol.DataMax(), vol.DisplayMin, vol.DisplayMax)

	// Assemble the viewport
	vp, err := viewport.New(plane, mapping.Convention(cfg.Display.Convention))
	if err != nil {
		log.Fatalf("Failed to create viewport: %v", err)
	}
	vp.OverlayOpacity = cfg.Display.OverlayOpacity
	if err := vp.SetLayer(0, vol); err != nil {
		log.Fatalf("Failed to attach volume: %v", err)
	}
	if *overlayFile != "" {
		overlay, err := nifti.Load(*overlayFile)
		if err != nil {
			log.Fatalf("Failed to load overlay: %v", err)
		}
		if err := vp.SetLayer(1, overlay); err != nil {
			log.Fatalf("Failed to attach overlay: %v", err)
		}
		fmt.Printf("Overlay:     %s\n", *overlayFile)
	}

	if *probe != "" {
		reportProbe(vol, plane, *probe)
	}

	cm, err := render.NewColormap(cfg.Display.Colormap)
	if err != nil {
		log.Fatalf("Failed to build colormap: %v", err)
	}

	if *exportAll {
		fmt.Printf("Exporting all %s slices to %s...\n", plane, *outputDir)
		if err := render.ExportSliceSequence(vol, plane, cm, cfg.Export.Scale, *outputDir); err != nil {
			log.Fatalf("Failed to export slices: %v", err)
		}
		fmt.Println("Done.")
		return
	}

	index := *sliceIndex
	if index < 0 {
		index = vol.Extent(plane) / 2
	}
	vp.SetSlice(index)
	if vp.CurrentSlice() != index {
		log.Fatalf("Slice %d outside [0,%d)", index, vol.Extent(plane))
	}

	img, err := vp.Render(cm)
	if err != nil {
		log.Fatalf("Failed to render slice: %v", err)
	}
	scaled, err := render.Scale(img, cfg.Export.Scale, cfg.Export.Smooth)
	if err != nil {
		log.Fatalf("Failed to scale slice: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	outPath := filepath.Join(*outputDir, fmt.Sprintf("slice_%s_%03d.png", plane, vp.CurrentSlice()))
	if err := render.SaveImage(scaled, outPath); err != nil {
		log.Fatalf("Failed to save slice: %v", err)
	}
	fmt.Printf("Saved %s slice %d to %s\n", plane, vp.CurrentSlice(), outPath)
}

// reportProbe prints the world position, screen position and intensity of
// one voxel, the same readout the interactive cursor shows.
func reportProbe(vol *volume.Volume, plane models.ViewPlane, spec string) {
	parts := strings.Split(spec, ",")
	if len(parts) != 3 {
		log.Fatalf("Probe must be \"i,j,k\", got %q", spec)
	}
	var v models.Voxel
	for n, dst := range []*int{&v.I, &v.J, &v.K} {
		value, err := strconv.Atoi(strings.TrimSpace(parts[n]))
		if err != nil {
			log.Fatalf("Invalid probe component %q: %v", parts[n], err)
		}
		*dst = value
	}

	m, err := mapping.NewMapper(vol, mapping.RAS)
	if err != nil {
		log.Fatalf("Failed to create mapper: %v", err)
	}
	intensity, ok := vol.At(v.I, v.J, v.K)
	if !ok {
		log.Fatalf("Voxel (%d,%d,%d) outside the volume", v.I, v.J, v.K)
	}
	w := m.VoxelToWorld(v)
	fmt.Printf("Probe voxel (%d,%d,%d):\n", v.I, v.J, v.K)
	fmt.Printf("  world      (%.3f, %.3f, %.3f) mm\n", w.X, w.Y, w.Z)
	fmt.Printf("  intensity  %g\n", intensity)
	if pt, slice, ok := m.VoxelToScreen(plane, v); ok {
		fmt.Printf("  screen     col=%d row=%d on %s slice %d\n", pt.Col, pt.Row, plane, slice)
	}
}
