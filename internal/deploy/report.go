package deploy

import (
	"errors"
	"fmt"
	"io"

	"github.com/shaun/pagesdeploy/internal/publish"
)

// Describe returns the user-facing explanation of a failed deploy.
func Describe(err error) string {
	var f *publish.Failure
	if !errors.As(err, &f) {
		return "Deployment failed: " + err.Error()
	}
	switch f.Kind {
	case publish.ConfigError:
		return fmt.Sprintf("Configuration incomplete: %s. Set GH_TOKEN, GH_OWNER and GH_REPO, pass flags, or run `pagesdeploy init`.", f.Message)
	case publish.NetworkError:
		return fmt.Sprintf("Could not reach GitHub: %s. Check the connection and retry.", f.Message)
	case publish.ProtocolError:
		return fmt.Sprintf("GitHub sent a response that could not be understood: %s.", f.Message)
	case publish.Conflict:
		return fmt.Sprintf("The remote file changed while deploying: %s. Run the deploy again to pick up the latest revision.", f.Message)
	case publish.QuotaExceeded:
		return fmt.Sprintf("Repository limit reached: %s. Delete the repository on GitHub and recreate it to reset the limit.", f.Message)
	case publish.RemoteRejected:
		return fmt.Sprintf("GitHub rejected the deploy: %s. Check the token's permissions and the repository name.", f.Message)
	case publish.InvalidContent:
		return fmt.Sprintf("Nothing deployed: %s.", f.Message)
	default:
		return "Deployment failed: " + f.Error()
	}
}

// Report prints the outcome of a successful deploy.
func Report(w io.Writer, res *publish.Success) {
	switch {
	case res.Unchanged:
		fmt.Fprintln(w, "Remote content is already up to date.")
	case res.Created:
		fmt.Fprintln(w, "Deployment succeeded (new file).")
	default:
		fmt.Fprintln(w, "Deployment succeeded.")
	}
	if res.Probe.Err != nil {
		fmt.Fprintf(w, "Warning: remote revision could not be checked: %v\n", res.Probe.Err)
	}
	if res.CommitID != "" {
		fmt.Fprintf(w, "> Commit: %s\n", res.ShortID())
	}
	fmt.Fprintf(w, "> Live URL: %s\n", res.URL)
}

// ReportStatus prints the result of a files check.
func ReportStatus(w io.Writer, st *Status) {
	fmt.Fprintf(w, "%s: %d files\n", st.Target, len(st.Files))
	for _, f := range st.Files {
		fmt.Fprintf(w, "  %-40s %8d  %.7s\n", f.Path, f.Size, f.SHA)
	}
	if st.AtLimit {
		fmt.Fprintf(w, "Warning: the repository has reached the %d file limit. Delete and recreate it to reset the limit.\n", st.Limit)
	}
}
