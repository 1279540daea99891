package logger

import (
	"github.com/op/go-logging"
)

// UploadProgressLogger logs the progress of a media upload. Minio
// reads from the progress reader as each chunk is sent.
type UploadProgressLogger struct {
	logger         *logging.Logger
	chunkNumber    int
	totalBytes     int64
	fileSize       int64
	lastPctPrinted float64
	prefix         string
}

const _10MB = int64(10485760)
const _100MB = int64(104857600)
const _1GB = int64(1073741824)

// NewUploadProgressLogger creates a new UploadProgressLogger.
func NewUploadProgressLogger(logger *logging.Logger, prefix string, fileSize int64) *UploadProgressLogger {
	return &UploadProgressLogger{
		logger:      logger,
		prefix:      prefix,
		chunkNumber: 1,
		fileSize:    fileSize,
	}
}

// Read fulfills the io.Reader interface minio expects for
// PutObjectOptions.Progress.
func (e *UploadProgressLogger) Read(p []byte) (n int, err error) {
	numBytes := len(p)
	e.totalBytes += int64(numBytes)
	if e.fileSize <= 0 {
		return numBytes, nil
	}
	pctComplete := float64(e.totalBytes) / float64(e.fileSize) * 100
	if e.shouldPrint(pctComplete) {
		e.logger.Infof("%s : chunk %d, %d of %d bytes, %3.2f%% complete",
			e.prefix, e.chunkNumber, e.totalBytes, e.fileSize, pctComplete)
		e.lastPctPrinted = pctComplete
	}
	e.chunkNumber++
	return numBytes, nil
}

// BytesSent returns the number of bytes reported so far.
func (e *UploadProgressLogger) BytesSent() int64 {
	return e.totalBytes
}

// Most images upload in a single chunk, so small files aren't
// logged at all. Large videos log at wider intervals.
func (e *UploadProgressLogger) shouldPrint(pctComplete float64) bool {
	diff := pctComplete - e.lastPctPrinted
	if e.fileSize > _1GB {
		return diff >= 5.0
	}
	if e.fileSize > _100MB {
		return diff >= 20.0
	}
	if e.fileSize > _10MB {
		return diff >= 50.0
	}
	return false
}
