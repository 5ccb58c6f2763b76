package dropbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/c2fo/filestorage/options"
)

const (
	optionNameAccessToken      = "accessToken"
	optionNameTokenSource      = "tokenSource"
	optionNameChunkSize        = "chunkSize"
	optionNameTempDir          = "tempDir"
	optionNameMemoryBufferSize = "memoryBufferSize"
	optionNameMaxUploadSize    = "maxUploadSize"
	optionNameRevisionLimit    = "revisionLimit"
	optionNameRevisionPolicy   = "revisionPolicy"
	optionNameBatchThreshold   = "batchThreshold"
	optionNameAccount          = "account"
	optionNameUserID           = "userID"
	optionNameReadOnly         = "readOnly"
	optionNameLogger           = "logger"
	optionNameRegisterer       = "registerer"
	optionNameMimeResolver     = "mimeResolver"
	optionNameFs               = "fs"
	optionNameClient           = "client"
)

// WithAccessToken sets the OAuth2 access token for Dropbox API authentication.
func WithAccessToken(token string) options.NewStorageOption[Storage] {
	return &accessTokenOpt{token: token}
}

type accessTokenOpt struct {
	token string
}

func (o *accessTokenOpt) Apply(s *Storage) {
	s.options.AccessToken = o.token
}

func (o *accessTokenOpt) NewStorageOptionName() string {
	return optionNameAccessToken
}

// WithTokenSource sets the source of (refreshable) credentials. It takes precedence over an access token.
func WithTokenSource(ts oauth2.TokenSource) options.NewStorageOption[Storage] {
	return &tokenSourceOpt{ts: ts}
}

type tokenSourceOpt struct {
	ts oauth2.TokenSource
}

func (o *tokenSourceOpt) Apply(s *Storage) {
	s.options.TokenSource = o.ts
}

func (o *tokenSourceOpt) NewStorageOptionName() string {
	return optionNameTokenSource
}

// WithChunkSize sets the single-shot upload threshold and the chunk size of upload sessions.
// Default is 8MB.
func WithChunkSize(size int64) options.NewStorageOption[Storage] {
	return &chunkSizeOpt{size: size}
}

type chunkSizeOpt struct {
	size int64
}

func (o *chunkSizeOpt) Apply(s *Storage) {
	s.options.ChunkSize = o.size
}

func (o *chunkSizeOpt) NewStorageOptionName() string {
	return optionNameChunkSize
}

// WithTempDir sets the directory for temporary files used while buffering uploads of unknown size.
// Defaults to os.TempDir() if not specified.
func WithTempDir(dir string) options.NewStorageOption[Storage] {
	return &tempDirOpt{dir: dir}
}

type tempDirOpt struct {
	dir string
}

func (o *tempDirOpt) Apply(s *Storage) {
	s.options.TempDir = o.dir
}

func (o *tempDirOpt) NewStorageOptionName() string {
	return optionNameTempDir
}

// WithMemoryBufferSize sets how many bytes of an upload of unknown size are buffered in memory.
func WithMemoryBufferSize(size int64) options.NewStorageOption[Storage] {
	return &memoryBufferSizeOpt{size: size}
}

type memoryBufferSizeOpt struct {
	size int64
}

func (o *memoryBufferSizeOpt) Apply(s *Storage) {
	s.options.MemoryBufferSize = o.size
}

func (o *memoryBufferSizeOpt) NewStorageOptionName() string {
	return optionNameMemoryBufferSize
}

// WithMaxUploadSize caps uploads of unknown size.
func WithMaxUploadSize(size int64) options.NewStorageOption[Storage] {
	return &maxUploadSizeOpt{size: size}
}

type maxUploadSizeOpt struct {
	size int64
}

func (o *maxUploadSizeOpt) Apply(s *Storage) {
	s.options.MaxUploadSize = o.size
}

func (o *maxUploadSizeOpt) NewStorageOptionName() string {
	return optionNameMaxUploadSize
}

// WithRevisionLimit bounds revision listings. Default is 10.
func WithRevisionLimit(limit uint64) options.NewStorageOption[Storage] {
	return &revisionLimitOpt{limit: limit}
}

type revisionLimitOpt struct {
	limit uint64
}

func (o *revisionLimitOpt) Apply(s *Storage) {
	s.options.RevisionLimit = o.limit
}

func (o *revisionLimitOpt) NewStorageOptionName() string {
	return optionNameRevisionLimit
}

// WithRevisionPolicy sets how GetFileMetadata treats its revision count lookup.
func WithRevisionPolicy(policy RevisionPolicy) options.NewStorageOption[Storage] {
	return &revisionPolicyOpt{policy: policy}
}

type revisionPolicyOpt struct {
	policy RevisionPolicy
}

func (o *revisionPolicyOpt) Apply(s *Storage) {
	s.options.RevisionPolicy = o.policy
}

func (o *revisionPolicyOpt) NewStorageOptionName() string {
	return optionNameRevisionPolicy
}

// WithBatchThreshold sets the number of same-folder ids from which GetDocuments lists the folder once.
func WithBatchThreshold(threshold int) options.NewStorageOption[Storage] {
	return &batchThresholdOpt{threshold: threshold}
}

type batchThresholdOpt struct {
	threshold int
}

func (o *batchThresholdOpt) Apply(s *Storage) {
	s.options.BatchThreshold = o.threshold
}

func (o *batchThresholdOpt) NewStorageOptionName() string {
	return optionNameBatchThreshold
}

// WithAccount sets the account identity reported in errors. name is also the display name of the root folder.
func WithAccount(id, name string) options.NewStorageOption[Storage] {
	return &accountOpt{id: id, name: name}
}

type accountOpt struct {
	id   string
	name string
}

func (o *accountOpt) Apply(s *Storage) {
	s.options.AccountID = o.id
	if o.name != "" {
		s.options.AccountName = o.name
	}
}

func (o *accountOpt) NewStorageOptionName() string {
	return optionNameAccount
}

// WithUserID sets the user owning every folder and reported in errors.
func WithUserID(id string) options.NewStorageOption[Storage] {
	return &userIDOpt{id: id}
}

type userIDOpt struct {
	id string
}

func (o *userIDOpt) Apply(s *Storage) {
	s.options.UserID = o.id
}

func (o *userIDOpt) NewStorageOptionName() string {
	return optionNameUserID
}

// WithReadOnly makes every mutating operation fail with OPERATION_NOT_SUPPORTED.
func WithReadOnly() options.NewStorageOption[Storage] {
	return &readOnlyOpt{}
}

type readOnlyOpt struct{}

func (o *readOnlyOpt) Apply(s *Storage) {
	s.options.ReadOnly = true
}

func (o *readOnlyOpt) NewStorageOptionName() string {
	return optionNameReadOnly
}

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(logger *zap.Logger) options.NewStorageOption[Storage] {
	return &loggerOpt{logger: logger}
}

type loggerOpt struct {
	logger *zap.Logger
}

func (o *loggerOpt) Apply(s *Storage) {
	if o.logger != nil {
		s.options.Logger = o.logger
	}
}

func (o *loggerOpt) NewStorageOptionName() string {
	return optionNameLogger
}

// WithRegisterer registers the storage's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) options.NewStorageOption[Storage] {
	return &registererOpt{reg: reg}
}

type registererOpt struct {
	reg prometheus.Registerer
}

func (o *registererOpt) Apply(s *Storage) {
	s.options.Registerer = o.reg
}

func (o *registererOpt) NewStorageOptionName() string {
	return optionNameRegisterer
}

// WithMIMEResolver replaces the extension based MIME type lookup.
func WithMIMEResolver(resolver MIMEResolver) options.NewStorageOption[Storage] {
	return &mimeResolverOpt{resolver: resolver}
}

type mimeResolverOpt struct {
	resolver MIMEResolver
}

func (o *mimeResolverOpt) Apply(s *Storage) {
	if o.resolver != nil {
		s.options.MIMEResolver = o.resolver
	}
}

func (o *mimeResolverOpt) NewStorageOptionName() string {
	return optionNameMimeResolver
}

// WithFs sets the file system holding temporary upload files.
func WithFs(fs afero.Fs) options.NewStorageOption[Storage] {
	return &fsOpt{fs: fs}
}

type fsOpt struct {
	fs afero.Fs
}

func (o *fsOpt) Apply(s *Storage) {
	if o.fs != nil {
		s.options.Fs = o.fs
	}
}

func (o *fsOpt) NewStorageOptionName() string {
	return optionNameFs
}

// WithClient sets a custom Dropbox client. Useful for testing or when you need
// to provide a pre-configured client.
func WithClient(client Client) options.NewStorageOption[Storage] {
	return &clientOpt{client: client}
}

type clientOpt struct {
	client Client
}

func (o *clientOpt) Apply(s *Storage) {
	s.client = o.client
}

func (o *clientOpt) NewStorageOptionName() string {
	return optionNameClient
}
