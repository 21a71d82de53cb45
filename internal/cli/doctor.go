package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	kverrors "github.com/princespaghetti/dirkv/internal/errors"
	"github.com/princespaghetti/dirkv/internal/kvstore"
)

// doctorProbePrefix prefixes the throwaway key of the read/write check.
const doctorProbePrefix = ".dirkv-doctor-"

var (
	doctorDetails bool
	doctorJSON    bool
)

// doctorCmd represents the doctor command.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostics on the store",
	Long: `Run diagnostics on the store to identify issues.

Checks performed:
  - Platform identity and the path/overwrite policies derived from it
  - Base folder exists and is a directory
  - A probe value can be written, read back and removed
  - No stale key lock files are left behind
  - Every on-disk entry name maps back to the same file when used as a key

Use --details for detailed diagnostic information.
Use --json for machine-readable output.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorDetails, "details", false, "Show detailed diagnostic information")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output in JSON format")
}

// CheckResult represents the result of a single diagnostic check.
type CheckResult struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"` // "pass", "warn", "fail"
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// DoctorOutput represents the complete diagnostic output.
type DoctorOutput struct {
	Checks      []CheckResult `json:"checks"`
	Summary     Summary       `json:"summary"`
	OverallPass bool          `json:"overall_pass"`
}

// Summary contains counts of check results.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Failures int `json:"failures"`
}

// errDoctorFailed is returned when at least one check fails.
var errDoctorFailed = fmt.Errorf("diagnostics reported failures")

func runDoctor(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()

	output := runChecks(ctx, store)

	if doctorJSON {
		if err := JSON(cmd.OutOrStdout(), output); err != nil {
			return err
		}
	} else {
		printDoctorOutput(output)
	}

	if !output.OverallPass {
		return errDoctorFailed
	}
	return nil
}

// runChecks runs every diagnostic against store and summarizes them.
func runChecks(ctx context.Context, store *kvstore.Store) DoctorOutput {
	results := []CheckResult{
		checkPlatform(store),
		checkBaseFolder(store),
		checkReadWrite(ctx, store),
		checkStaleLocks(store),
		checkEntryNames(ctx, store),
	}

	summary := Summary{Total: len(results)}
	overallPass := true
	for _, result := range results {
		switch result.Status {
		case "pass":
			summary.Passed++
		case "warn":
			summary.Warnings++
		case "fail":
			summary.Failures++
			overallPass = false
		}
	}

	return DoctorOutput{
		Checks:      results,
		Summary:     summary,
		OverallPass: overallPass,
	}
}

func printDoctorOutput(output DoctorOutput) {
	Header("Store Diagnostics")

	for _, check := range output.Checks {
		fmt.Printf("%s %s\n", StatusIcon(check.Status), check.Name)

		if (doctorDetails || check.Status != "pass") && len(check.Issues) > 0 {
			for _, issue := range check.Issues {
				fmt.Printf("  - %s\n", issue)
			}
		}
		if check.Status != "pass" && len(check.Suggestions) > 0 {
			for _, suggestion := range check.Suggestions {
				fmt.Printf("  → %s\n", suggestion)
			}
		}

		EmptyLine()
	}

	Subheader("Summary")
	Field("Total checks", fmt.Sprintf("%d", output.Summary.Total))
	Field("Passed", fmt.Sprintf("%d", output.Summary.Passed))
	if output.Summary.Warnings > 0 {
		Field("Warnings", fmt.Sprintf("%d", output.Summary.Warnings))
	}
	if output.Summary.Failures > 0 {
		Field("Failures", fmt.Sprintf("%d", output.Summary.Failures))
	}
	EmptyLine()

	switch {
	case !output.OverallPass:
		Info("Status: FAIL")
	case output.Summary.Warnings > 0:
		Info("Status: PASS (with warnings)")
	default:
		Info("Status: PASS")
	}
}

// checkPlatform reports the resolved platform policies. It never fails;
// the details are informational.
func checkPlatform(store *kvstore.Store) CheckResult {
	caps := store.Capabilities()
	result := CheckResult{
		Name:   "Platform policy",
		Status: "pass",
		Issues: []string{
			fmt.Sprintf("Platform: %s", store.Platform()),
			fmt.Sprintf("Separator: %q (leading root: %v)", caps.Separator, caps.LeadingSeparator),
			fmt.Sprintf("Delete before overwrite: %v", caps.DeleteBeforeWrite),
		},
	}
	return result
}

// checkBaseFolder verifies the base folder exists and is a directory.
func checkBaseFolder(store *kvstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Base folder",
		Status: "pass",
	}

	info, err := os.Stat(store.BaseFolder())
	switch {
	case os.IsNotExist(err):
		result.Status = "warn"
		result.Issues = append(result.Issues, fmt.Sprintf("Base folder does not exist yet: %s", store.BaseFolder()))
		result.Suggestions = append(result.Suggestions, "Run 'dirkv init' or write a key to create it")
	case err != nil:
		result.Status = "fail"
		result.Issues = append(result.Issues, fmt.Sprintf("Cannot access base folder: %v", err))
	case !info.IsDir():
		result.Status = "fail"
		result.Issues = append(result.Issues, fmt.Sprintf("Path exists but is not a directory: %s", store.BaseFolder()))
		result.Suggestions = append(result.Suggestions, "Move the file away or choose another --folder")
	default:
		result.Issues = append(result.Issues, fmt.Sprintf("Base folder: %s", store.BaseFolder()))
	}

	return result
}

// checkReadWrite round-trips a probe value through the store. It is
// skipped while the base folder does not exist so diagnostics never
// create it.
func checkReadWrite(ctx context.Context, store *kvstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Read/write access",
		Status: "pass",
	}

	exists, err := store.Exists()
	if err != nil || !exists {
		result.Status = "warn"
		result.Issues = append(result.Issues, "Skipped: base folder does not exist")
		return result
	}

	const probe = "dirkv doctor probe"
	fail := func(step string, err error) CheckResult {
		result.Status = "fail"
		result.Issues = append(result.Issues, fmt.Sprintf("%s failed: %v", step, err))
		if kverrors.IsError(err, os.ErrPermission) {
			result.Suggestions = append(result.Suggestions, "Check the permissions of "+store.BaseFolder())
		}
		return result
	}

	key, err := unusedProbeKey(ctx, store)
	if err != nil {
		return fail("Read", err)
	}
	if err := store.Set(ctx, key, probe); err != nil {
		return fail("Write", err)
	}
	got, ok, err := store.Get(ctx, key)
	if err != nil {
		return fail("Read", err)
	}
	if !ok || got != probe {
		result.Status = "fail"
		result.Issues = append(result.Issues, fmt.Sprintf("Read back %q, want %q", got, probe))
	}
	if err := store.Remove(ctx, key); err != nil {
		return fail("Remove", err)
	}
	return result
}

// unusedProbeKey returns a random key that holds no value, so the
// read/write check never clobbers a stored entry.
func unusedProbeKey(ctx context.Context, store *kvstore.Store) (string, error) {
	for {
		key := doctorProbePrefix + uuid.NewString()
		_, ok, err := store.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok {
			return key, nil
		}
	}
}

// checkStaleLocks looks for lock files no process holds.
func checkStaleLocks(store *kvstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Key locks",
		Status: "pass",
	}

	stale, err := findStaleLocks(store.LockDir())
	if err != nil {
		result.Status = "warn"
		result.Issues = append(result.Issues, fmt.Sprintf("Cannot inspect lock folder: %v", err))
		return result
	}
	if len(stale) > 0 {
		result.Status = "warn"
		result.Issues = append(result.Issues, fmt.Sprintf("%d stale lock file(s) in %s", len(stale), store.LockDir()))
		result.Suggestions = append(result.Suggestions, "Run 'dirkv clean' to remove them")
	}
	return result
}

// checkEntryNames warns about files whose listed (decoded) name resolves
// to a different file, which makes them unreachable through get/rm.
func checkEntryNames(ctx context.Context, store *kvstore.Store) CheckResult {
	result := CheckResult{
		Name:   "Entry names",
		Status: "pass",
	}

	exists, err := store.Exists()
	if err != nil || !exists {
		return result
	}

	entries, err := os.ReadDir(store.BaseFolder())
	if err != nil {
		result.Status = "fail"
		result.Issues = append(result.Issues, fmt.Sprintf("Cannot list base folder: %v", err))
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.Type().IsRegular() {
			continue
		}
		decoded, err := url.PathUnescape(entry.Name())
		if err != nil {
			continue
		}
		if kvstore.SanitizeKey(decoded) != entry.Name() {
			result.Status = "warn"
			result.Issues = append(result.Issues, fmt.Sprintf("%q is listed as %q but that key maps to another file", entry.Name(), decoded))
		}
	}
	if result.Status == "warn" {
		result.Suggestions = append(result.Suggestions, "Rename files so their names contain no percent escapes or reserved characters")
	}
	return result
}
