package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/irfu/bicas"
	"github.com/irfu/bicas/internal/bicasdb"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var githash = "githash not computed"
var gitdate = "git date not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the directory
// and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	if err := os.MkdirAll(dir, 0775); err != nil {
		return "", err
	}

	// Create an empty file path/filename, if it doesn't exist.
	fullname := path.Join(dir, filename)
	if _, err := os.Stat(fullname); os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper says where to find the config file, creating an empty one under
// ~/.bicas if needed, sets the calibration defaults and reads the config.
func setupViper(dotBicas string) error {
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotBicas, filename+suffix); err != nil {
		return err
	}

	bicas.SetCalibrationDefaults(viper.GetViper())
	viper.SetConfigName(filename)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dotBicas)
	viper.AddConfigPath(filepath.FromSlash("/etc/bicas"))
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %s", err)
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	}, "", log.LstdFlags)
}

// segmentMessage converts a segment summary to its database row.
func segmentMessage(s bicas.SegmentSummary) *bicasdb.SegmentMessage {
	msg := &bicasdb.SegmentMessage{
		First:      s.Records.First,
		Last:       s.Records.Last,
		Mode:       float64(s.Mode),
		DiffGain:   float64(s.DiffGain),
		SampleRate: float64(s.SampleRate),
		Routing:    s.Routing[:],
		Sources:    s.Sources[:],
		Mean:       make([]float64, len(s.Mean)),
		StdDev:     make([]float64, len(s.StdDev)),
		NaNInputs:  s.NaNInputs,
	}
	for i := range s.Mean {
		msg.Mean[i] = float64(s.Mean[i])
		msg.StdDev[i] = float64(s.StdDev[i])
	}
	return msg
}

func main() {
	buildDate = strings.ReplaceAll(buildDate, ".", " ") // workaround for Make problems
	bicas.Build.Date = buildDate
	bicas.Build.Githash = githash
	bicas.Build.Gitdate = gitdate
	bicas.Build.Summary = fmt.Sprintf("BICAS version %s (git commit %s of %s)", bicas.Build.Version, githash, gitdate)
	if host, err := os.Hostname(); err == nil {
		bicas.Build.Host = host
	} else {
		bicas.Build.Host = "host not detected"
	}

	printVersion := flag.Bool("version", false, "print version and quit")
	inDir := flag.String("in", ".", "directory holding the input dataset (.npy files)")
	outDir := flag.String("out", "", "directory to write calibrated ASR .npy files (required)")
	dbAddr := flag.String("db", "", "ClickHouse server address to record the run in, e.g. "+bicasdb.DefaultAddr)
	publish := flag.Bool("publish", false, fmt.Sprintf("publish segment summaries on ZMQ port %d", bicas.Ports.Status))
	simulate := flag.Int("simulate", 0, "first write a simulated dataset of this many records to the -in directory")
	workers := flag.Int("workers", runtime.NumCPU(), "number of segments processed at once")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to given file")
	memprofile := flag.String("memprofile", "", "write memory profile to given file")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is BICAS version %s\n", bicas.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		fmt.Printf("Running on %d CPUs.\n", runtime.NumCPU())
		os.Exit(0)
	}
	if *outDir == "" {
		fmt.Fprintln(os.Stderr, "bicas: -out is required")
		flag.Usage()
		os.Exit(2)
	}

	banner := fmt.Sprintf("\nThis is BICAS version %s (git commit %s)\n", bicas.Build.Version, githash)
	fmt.Print(banner)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Start logging problems and updates to 2 log files.
	HOME, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	dotBicas := filepath.Join(HOME, ".bicas")
	logdir := filepath.Join(dotBicas, "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	bicas.ProblemLogger = startLogger(problemname)
	bicas.UpdateLogger = startLogger(logname)
	fmt.Printf("Logging problems to %s\n", problemname)
	fmt.Printf("Logging updates  to %s\n\n", logname)
	bicas.UpdateLogger.Printf("\n\n\n\n%s", banner)
	bicas.UpdateLogger.Printf("Started at %s", bicas.StartTime.Format(time.RFC3339))

	// Find config file, creating it if needed, and read it.
	if err := setupViper(dotBicas); err != nil {
		panic(err)
	}
	cal, err := bicas.LoadCalibration(viper.GetViper())
	if err != nil {
		log.Fatal(err)
	}
	bicas.UpdateLogger.Printf("Calibration in use:\n%s", spew.Sdump(cal))

	if *simulate > 0 {
		if err := writeSimulated(*inDir, *simulate, cal); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Wrote %d simulated records to %s\n", *simulate, *inDir)
	}

	if err := run(cal, *inDir, *outDir, *dbAddr, *publish, *workers); err != nil {
		bicas.ProblemLogger.Print(err)
		writeMemoryProfile(memprofile)
		log.Fatal(err)
	}
	writeMemoryProfile(memprofile)
}

// writeSimulated writes a dataset of nrec snapshot records that steps through
// every mux mode and both differential gains.
func writeSimulated(dir string, nrec int, cal *bicas.Calibration) error {
	const recordsPerMode = 16
	const samplesPerRecord = 256
	mode := make([]float64, nrec)
	diffGain := make([]float64, nrec)
	for i := range nrec {
		mode[i] = float64(i / recordsPerMode % bicas.NumModes)
		diffGain[i] = float64(i / (recordsPerMode / 2) % 2)
	}
	ds, _, err := bicas.NewSimSource(4096).Simulate(mode, diffGain, samplesPerRecord, cal.DlrUsing12, cal.Gains)
	if err != nil {
		return err
	}
	return bicas.WriteDataset(dir, ds)
}

// newRunMessage describes this program run for the runs table.
func newRunMessage(inDir, outDir string) *bicasdb.RunMessage {
	return &bicasdb.RunMessage{
		ID:        bicasdb.NewID(),
		Hostname:  bicas.Build.Host,
		Githash:   bicas.Build.Githash,
		Version:   bicas.Build.Version,
		GoVersion: runtime.Version(),
		CPUs:      runtime.NumCPU(),
		Input:     inDir,
		Output:    outDir,
		Start:     bicas.StartTime,
	}
}

// run processes one dataset, publishing and recording it as requested.
func run(cal *bicas.Calibration, inDir, outDir, dbAddr string, publish bool, workers int) error {
	ds, err := bicas.ReadDataset(inDir)
	if err != nil {
		return err
	}
	proc := bicas.NewProcessor(cal, workers)

	var publisherDone chan error
	if publish {
		updates := make(chan bicas.ClientUpdate)
		publisherDone = make(chan error, 1)
		go func() { publisherDone <- bicas.RunClientUpdater(updates, bicas.Ports.Status) }()
		proc.Updates = updates
		defer func() {
			close(updates)
			if err := <-publisherDone; err != nil {
				bicas.ProblemLogger.Printf("status publisher: %v", err)
			}
		}()
	}

	db := bicasdb.DummyConnection()
	abort := make(chan struct{})
	if dbAddr != "" {
		runMsg := newRunMessage(inDir, outDir)
		db = bicasdb.StartConnection(dbAddr, runMsg, abort)
		if !db.IsConnected() {
			bicas.ProblemLogger.Printf("not recording run %s in database: %v", runMsg.ID, db.Err())
		}
	}
	defer func() {
		close(abort)
		db.Wait()
		if err := db.Err(); err != nil {
			bicas.ProblemLogger.Printf("database: %v", err)
		}
	}()

	start := time.Now()
	out, err := proc.Process(ds)
	if err != nil {
		return err
	}
	for _, s := range out.Segments {
		db.RecordSegment(segmentMessage(s))
	}
	if err := bicas.WriteASR(outDir, out); err != nil {
		return err
	}
	msg := fmt.Sprintf("Calibrated %d records in %d segments in %v; ASR written to %s",
		ds.NRecords(), len(out.Segments), time.Since(start), outDir)
	bicas.UpdateLogger.Print(msg)
	fmt.Println(msg)
	return nil
}

// writeMemoryProfile writes the memory use profile to the indicated file.
// If `memprofile` points to an empty string, do not write.
func writeMemoryProfile(memprofile *string) {
	if *memprofile == "" {
		return
	}

	f, err := os.Create(*memprofile)
	if err != nil {
		log.Fatal("could not create memory profile: ", err)
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("could not write memory profile: ", err)
	}
}
