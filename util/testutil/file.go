package testutil

import (
	"os"
	"path"

	"github.com/ipcollateral/lending-services/util"
)

func PathToTestData() string {
	return path.Join(util.ProjectRoot(), "testdata")
}

// PathToFixture returns the path of a file under testdata/<dir>.
func PathToFixture(dir, filename string) string {
	return path.Join(PathToTestData(), dir, filename)
}

// ReadFixture returns the contents of testdata/<dir>/<filename>.
func ReadFixture(dir, filename string) ([]byte, error) {
	return os.ReadFile(PathToFixture(dir, filename))
}
