package fetcher

//go:generate mockgen -source=../ports/ports.go -destination=../ports/mocks/mocks.go -package=mocks EnrollmentLookup,InstallStateLookup,DebugReporter,NoiseDecision

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports/mocks"
)

const testEnrollment = "enrollment-1"

type transportFunc func(ctx context.Context, method, uri string, header http.Header) (*Response, error)

func (fn transportFunc) Do(ctx context.Context, method, uri string, header http.Header) (*Response, error) {
	return fn(ctx, method, uri, header)
}

type FetcherSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	enrollments *mocks.MockEnrollmentLookup
	server      *httptest.Server
	calls       atomic.Int32
	mu          sync.Mutex
	handler     http.HandlerFunc
	lastRequest *http.Request
	fetcher     *Fetcher
	requestTime time.Time
}

func TestFetcherSuite(t *testing.T) {
	suite.Run(t, new(FetcherSuite))
}

func (s *FetcherSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.enrollments = mocks.NewMockEnrollmentLookup(s.ctrl)
	s.calls.Store(0)
	s.handler = func(w http.ResponseWriter, r *http.Request) {}
	s.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.mu.Lock()
		s.lastRequest = r
		handler := s.handler
		s.mu.Unlock()
		handler(w, r)
	}))
	s.requestTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f, err := New(NewHTTPTransport(s.server.Client()), s.enrollments, WithConfig(Config{
		DebugKeyAllowlist: []string{testEnrollment},
	}))
	s.Require().NoError(err)
	s.fetcher = f
}

func (s *FetcherSuite) TearDownTest() {
	s.server.Close()
}

func (s *FetcherSuite) item(typ models.RegistrationType) *models.WorkItem {
	item := models.NewWorkItem(s.server.URL+"/register", typ, s.requestTime)
	item.SourceType = models.SourceTypeEvent
	item.TopOrigin = "android-app://com.publisher"
	item.Registrant = "android-app://com.publisher"
	if typ.IsWeb() {
		item.TopOrigin = "https://news.example"
	}
	return item
}

func (s *FetcherSuite) expectEnrollment() {
	s.enrollments.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(testEnrollment, true, nil)
}

func (s *FetcherSuite) respond(status int, headers map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		for k, values := range headers {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(status)
	}
}

// =============================================================================
// Exchange classification
// =============================================================================

func (s *FetcherSuite) TestNonHTTPSRejectedWithoutNetwork() {
	item := s.item(models.RegistrationAppSource)
	item.RegistrationURI = "http://ads.example.test/register"

	result, err := s.fetcher.Fetch(context.Background(), item)

	s.Require().ErrorIs(err, models.ErrParsing)
	s.NotNil(result)
	s.Equal(int32(0), s.calls.Load())
}

func (s *FetcherSuite) TestMissingEnrollmentMakesNoHTTPCall() {
	s.enrollments.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("", false, nil)

	result, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppSource))

	s.Require().ErrorIs(err, models.ErrInvalidEnrollment)
	s.Nil(result.Source)
	s.Empty(result.Redirects)
	s.Equal(int32(0), s.calls.Load())
}

func (s *FetcherSuite) TestEnrollmentLookupFailureIsRetryable() {
	s.enrollments.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("", false, errors.New("pool closed"))

	_, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppSource))

	s.Require().ErrorIs(err, models.ErrNetwork)
	s.True(models.IsRetryable(err))
}

func (s *FetcherSuite) TestServerErrorIsServerUnavailable() {
	s.expectEnrollment()
	s.respond(http.StatusInternalServerError, map[string][]string{
		HeaderRedirect: {"https://ignored.example.test"},
	})

	result, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppSource))

	s.Require().ErrorIs(err, models.ErrServerUnavailable)
	s.True(models.IsRetryable(err))
	s.Empty(result.Redirects)
	s.Equal(int32(1), s.calls.Load())
}

func (s *FetcherSuite) TestTransportFailureIsNetworkError() {
	s.expectEnrollment()
	f, err := New(transportFunc(func(context.Context, string, string, http.Header) (*Response, error) {
		return nil, errors.New("connection reset by peer")
	}), s.enrollments)
	s.Require().NoError(err)

	_, err = f.Fetch(context.Background(), s.item(models.RegistrationAppSource))

	s.Require().ErrorIs(err, models.ErrNetwork)
}

func (s *FetcherSuite) TestRequestShape() {
	s.expectEnrollment()
	s.respond(http.StatusOK, map[string][]string{
		HeaderRegisterSource: {`{"destination":"com.shop.app"}`},
	})
	item := s.item(models.RegistrationAppSource)
	item.SourceType = models.SourceTypeNavigation

	_, err := s.fetcher.Fetch(context.Background(), item)

	s.Require().NoError(err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Equal(http.MethodPost, s.lastRequest.Method)
	s.Equal("navigation", s.lastRequest.Header.Get(HeaderSourceInfo))
}

// =============================================================================
// Redirect extraction
// =============================================================================

func (s *FetcherSuite) TestListRedirectWinsOverLocation() {
	s.expectEnrollment()
	s.respond(http.StatusOK, map[string][]string{
		HeaderRegisterSource: {`{"destination":"com.shop.app"}`},
		HeaderRedirect:       {"https://r1.example.test/a", "https://r2.example.test/b"},
		HeaderLocation:       {"https://location.example.test/c"},
	})

	result, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppSource))

	s.Require().NoError(err)
	s.Equal([]string{"https://r1.example.test/a", "https://r2.example.test/b"}, result.Redirects)
}

// Location is read from the headers alone, so a 200 carrying it chains the
// same way a 302 does.
func (s *FetcherSuite) TestLocationRedirectIgnoresStatus() {
	for _, status := range []int{http.StatusOK, http.StatusFound} {
		s.Run(http.StatusText(status), func() {
			s.expectEnrollment()
			s.respond(status, map[string][]string{
				HeaderRegisterSource: {`{"destination":"com.shop.app"}`},
				HeaderLocation:       {"https://next.example.test/hop"},
			})

			result, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppSource))

			s.Require().NoError(err)
			s.Equal([]string{"https://next.example.test/hop"}, result.Redirects)
			s.NotNil(result.Source)
		})
	}
}

func (s *FetcherSuite) TestRedirectsSurviveParseFailure() {
	s.expectEnrollment()
	s.respond(http.StatusOK, map[string][]string{
		HeaderRegisterSource: {`{"destination":`},
		HeaderRedirect:       {"https://r1.example.test/a"},
	})

	result, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppSource))

	s.Require().ErrorIs(err, models.ErrParsing)
	s.Nil(result.Source)
	s.Equal([]string{"https://r1.example.test/a"}, result.Redirects)
}

func (s *FetcherSuite) TestMissingPayloadHeaderIsParsingError() {
	s.expectEnrollment()
	s.respond(http.StatusOK, map[string][]string{
		HeaderLocation: {"https://next.example.test/hop"},
	})

	result, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppSource))

	s.Require().ErrorIs(err, models.ErrParsing)
	s.Equal([]string{"https://next.example.test/hop"}, result.Redirects)
}

func (s *FetcherSuite) TestClientErrorStatusIsTerminal() {
	s.expectEnrollment()
	s.respond(http.StatusNotFound, nil)

	_, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppSource))

	s.Require().ErrorIs(err, models.ErrParsing)
	s.False(models.IsRetryable(err))
}

// =============================================================================
// Source payloads
// =============================================================================

func (s *FetcherSuite) fetchSource(item *models.WorkItem, payload string) (*models.Source, error) {
	s.expectEnrollment()
	s.respond(http.StatusOK, map[string][]string{HeaderRegisterSource: {payload}})
	result, err := s.fetcher.Fetch(context.Background(), item)
	return result.Source, err
}

func (s *FetcherSuite) TestSourceDefaults() {
	src, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"android-app://com.shop.app"}`)

	s.Require().NoError(err)
	s.Equal([]string{"android-app://com.shop.app"}, src.AppDestinations)
	s.Equal(uint64(0), src.EventID)
	s.Equal(int64(0), src.Priority)
	s.Equal(s.requestTime, src.EventTime)
	s.Equal(s.requestTime.Add(30*day), src.ExpiryTime)
	s.Equal(src.ExpiryTime, src.EventReportWindow)
	s.Equal(src.ExpiryTime, src.AggregatableReportWindow)
	s.Equal(30*day, src.InstallAttributionWindow)
	s.Equal(time.Duration(0), src.InstallCooldownWindow)
	s.Equal(testEnrollment, src.EnrollmentID)
	s.Equal("android-app://com.publisher", src.Publisher)
	s.Equal(models.SurfaceApp, src.PublisherType)
	s.Equal(models.SourceActive, src.Status)
	s.Nil(src.Flex)
}

func (s *FetcherSuite) TestSourceMissingDestination() {
	_, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"source_event_id":"1"}`)
	s.Require().ErrorIs(err, models.ErrParsing)
}

func (s *FetcherSuite) TestSourceEventIDWraps() {
	src, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","source_event_id":"-1"}`)
	s.Require().NoError(err)
	s.Equal(uint64(18446744073709551615), src.EventID)
}

func (s *FetcherSuite) TestSourceEventIDOutOfRangeIsAbsent() {
	src, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","source_event_id":"18446744073709551616"}`)
	s.Require().NoError(err)
	s.Equal(uint64(0), src.EventID)
}

func (s *FetcherSuite) TestEventExpiryRoundsThenClamps() {
	src, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","expiry":"172801","event_report_window":"3600"}`)
	s.Require().NoError(err)
	s.Equal(s.requestTime.Add(2*day), src.ExpiryTime)
	s.Equal(s.requestTime.Add(day), src.EventReportWindow)
}

func (s *FetcherSuite) TestNavigationExpiryIsNotRounded() {
	item := s.item(models.RegistrationAppSource)
	item.SourceType = models.SourceTypeNavigation
	src, err := s.fetchSource(item, `{"destination":"com.shop.app","expiry":172801,"aggregatable_report_window":"999999999"}`)
	s.Require().NoError(err)
	s.Equal(s.requestTime.Add(172801*time.Second), src.ExpiryTime)
	s.Equal(src.ExpiryTime, src.AggregatableReportWindow)
}

func (s *FetcherSuite) TestMalformedPriorityFailsParse() {
	_, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","priority":"high"}`)
	s.Require().ErrorIs(err, models.ErrParsing)
}

func (s *FetcherSuite) TestFilterDataBounds() {
	_, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","filter_data":{"source_type":["event"]}}`)
	s.Require().ErrorIs(err, models.ErrParsing)

	_, err = s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","filter_data":{"this_key_is_far_too_long_to_pass":["a"]}}`)
	s.Require().ErrorIs(err, models.ErrParsing)

	src, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","filter_data":{"campaign":["summer"]}}`)
	s.Require().NoError(err)
	s.Equal(models.FilterData{"campaign": {"summer"}}, src.FilterData)
}

func (s *FetcherSuite) TestAggregationKeyPieces() {
	src, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","aggregation_keys":{"a":"0x15A","b":"0X15A"}}`)
	s.Require().NoError(err)
	s.Len(src.AggregationKeys, 2)

	for _, bad := range []string{`"1234"`, `"0x"`, `"0xZZ"`, `"0x123456789012345678901234567890123"`} {
		_, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","aggregation_keys":{"a":`+bad+`}}`)
		s.Require().ErrorIs(err, models.ErrParsing, bad)
	}
}

func (s *FetcherSuite) TestDebugKeysNeedPermissionAndAllowlist() {
	payload := `{"destination":"com.shop.app","debug_key":"42","debug_join_key":"join"}`

	item := s.item(models.RegistrationAppSource)
	src, err := s.fetchSource(item, payload)
	s.Require().NoError(err)
	s.Nil(src.DebugKey)
	s.Empty(src.DebugJoinKey)

	item = s.item(models.RegistrationAppSource)
	item.DebugKeyAllowed = true
	src, err = s.fetchSource(item, payload)
	s.Require().NoError(err)
	s.Require().NotNil(src.DebugKey)
	s.Equal(uint64(42), *src.DebugKey)
	s.Equal("join", src.DebugJoinKey)

	other, err := New(NewHTTPTransport(s.server.Client()), s.enrollments, WithConfig(Config{DebugKeyAllowlist: []string{"someone-else"}}))
	s.Require().NoError(err)
	s.expectEnrollment()
	s.respond(http.StatusOK, map[string][]string{HeaderRegisterSource: {payload}})
	result, err := other.Fetch(context.Background(), item)
	s.Require().NoError(err)
	s.Nil(result.Source.DebugKey)
}

func (s *FetcherSuite) TestWebDestinationsReducedToSites() {
	item := s.item(models.RegistrationWebSource)
	src, err := s.fetchSource(item, `{"web_destination":["https://www.shop.example/cart","https://checkout.shop.example"]}`)

	s.Require().NoError(err)
	s.Equal([]string{"https://shop.example"}, src.WebDestinations)
	s.Equal("https://news.example", src.Publisher)
	s.Equal(models.SurfaceWeb, src.PublisherType)
}

func (s *FetcherSuite) TestTooManyWebDestinations() {
	item := s.item(models.RegistrationWebSource)
	_, err := s.fetchSource(item, `{"web_destination":["https://a.example","https://b.example","https://c.example","https://d.example"]}`)
	s.Require().ErrorIs(err, models.ErrParsing)
}

func (s *FetcherSuite) TestWebDestinationMismatch() {
	item := s.item(models.RegistrationWebSource)
	item.WebDestination = "https://other.example"
	s.expectEnrollment()
	s.respond(http.StatusOK, map[string][]string{
		HeaderRegisterSource: {`{"web_destination":"https://shop.example"}`},
		HeaderRedirect:       {"https://r1.example.test/a"},
	})

	result, err := s.fetcher.Fetch(context.Background(), item)

	s.Require().ErrorIs(err, models.ErrParsing)
	s.Nil(result.Source)
	s.Equal([]string{"https://r1.example.test/a"}, result.Redirects)
}

func (s *FetcherSuite) TestOsDestinationMismatch() {
	item := s.item(models.RegistrationWebSource)
	item.OsDestination = "android-app://com.other"
	_, err := s.fetchSource(item, `{"destination":"com.shop.app","web_destination":"https://shop.example"}`)
	s.Require().ErrorIs(err, models.ErrParsing)

	item = s.item(models.RegistrationWebSource)
	item.OsDestination = "android-app://com.shop.app"
	item.WebDestination = "https://www.shop.example"
	src, err := s.fetchSource(item, `{"destination":"com.shop.app","web_destination":"https://shop.example"}`)
	s.Require().NoError(err)
	s.True(src.HasDualDestination())
}

func (s *FetcherSuite) TestFlexTriggerSpecs() {
	item := s.item(models.RegistrationAppSource)
	item.SourceType = models.SourceTypeNavigation
	src, err := s.fetchSource(item, `{
		"destination":"com.shop.app",
		"max_event_level_reports":3,
		"trigger_specs":[
			{"trigger_data":[0,1,2],"event_report_windows":{"start_time":0,"end_times":[7200,172800]},"summary_buckets":[1,2]},
			{"trigger_data":[3],"summary_window_operator":"value_sum"}
		]
	}`)

	s.Require().NoError(err)
	s.Require().True(src.HasTriggerSpecs())
	s.Equal(3, src.MaxReports())
	s.Equal(4, src.TriggerDataCardinality())
	s.Equal([]time.Duration{2 * time.Hour, 2 * day}, src.Flex.TriggerSpecs[0].Windows.Ends)
	s.Equal(models.SummaryValueSum, src.Flex.TriggerSpecs[1].SummaryWindowOperator)
	s.Equal([]uint32{1, 2, 3}, src.Flex.TriggerSpecs[1].SummaryBuckets)
}

func (s *FetcherSuite) TestFlexRejectsInvalidConfigurations() {
	cases := map[string]string{
		"duplicate trigger data":   `{"destination":"com.shop.app","trigger_specs":[{"trigger_data":[1]},{"trigger_data":[1]}]}`,
		"non increasing ends":      `{"destination":"com.shop.app","event_report_windows":{"end_times":[86400,86400]}}`,
		"both window forms":        `{"destination":"com.shop.app","event_report_window":"86400","event_report_windows":{"end_times":[86400]}}`,
		"too many reports":         `{"destination":"com.shop.app","max_event_level_reports":21}`,
		"non increasing buckets":   `{"destination":"com.shop.app","max_event_level_reports":3,"trigger_specs":[{"trigger_data":[1],"summary_buckets":[2,1]}]}`,
		"unknown summary operator": `{"destination":"com.shop.app","trigger_specs":[{"trigger_data":[1],"summary_window_operator":"max"}]}`,
	}
	for name, payload := range cases {
		s.Run(name, func() {
			_, err := s.fetchSource(s.item(models.RegistrationAppSource), payload)
			s.Require().ErrorIs(err, models.ErrParsing)
		})
	}
}

func (s *FetcherSuite) TestFlexLiteWindowsSetReportWindow() {
	src, err := s.fetchSource(s.item(models.RegistrationAppSource), `{"destination":"com.shop.app","max_event_level_reports":2,"event_report_windows":{"end_times":[60,86400,172800]}}`)

	s.Require().NoError(err)
	s.True(src.HasFlexLite())
	s.Equal([]time.Duration{time.Hour, day, 2 * day}, src.ReportWindowEnds())
	s.Equal(s.requestTime.Add(2*day), src.EventReportWindow)
}

// =============================================================================
// Trigger payloads
// =============================================================================

func (s *FetcherSuite) fetchTrigger(payload string) (*models.Trigger, error) {
	s.expectEnrollment()
	s.respond(http.StatusOK, map[string][]string{HeaderRegisterTrigger: {payload}})
	result, err := s.fetcher.Fetch(context.Background(), s.item(models.RegistrationAppTrigger))
	return result.Trigger, err
}

func (s *FetcherSuite) TestTriggerParse() {
	trig, err := s.fetchTrigger(`{
		"event_trigger_data":[{"trigger_data":"2","priority":"-3","deduplication_key":"-1","filters":{"product":["shoes"]}}],
		"aggregatable_trigger_data":[{"key_piece":"0x400","source_keys":["campaign"],"not_filters":[{"region":["us"]}]}],
		"aggregatable_values":{"campaign":32768},
		"aggregatable_deduplication_keys":[{"deduplication_key":"18446744073709551615"}],
		"filters":[{"source_type":["navigation"]}]
	}`)

	s.Require().NoError(err)
	s.Equal("android-app://com.publisher", trig.AttributionDestination)
	s.Equal(models.SurfaceApp, trig.DestinationType)
	s.Require().Len(trig.EventTriggers, 1)
	s.Equal(uint64(2), trig.EventTriggers[0].TriggerData)
	s.Equal(int64(-3), trig.EventTriggers[0].Priority)
	s.Equal(uint64(18446744073709551615), *trig.EventTriggers[0].DeduplicationKey)
	s.Equal(models.FilterSet{{"product": {"shoes"}}}, trig.EventTriggers[0].Filters)
	s.Equal("0x400", trig.AggregatableTriggerData[0].KeyPiece)
	s.Equal(map[string]int{"campaign": 32768}, trig.AggregatableValues)
	s.Equal(uint64(18446744073709551615), *trig.AggregateDeduplicationKeys[0].DeduplicationKey)
	s.Equal(models.FilterSet{{"source_type": {"navigation"}}}, trig.Filters)
}

func (s *FetcherSuite) TestTriggerRejectsInvalidFields() {
	cases := map[string]string{
		"aggregatable value too large": `{"aggregatable_values":{"campaign":65537}}`,
		"bad key piece":                `{"aggregatable_trigger_data":[{"key_piece":"1234"}]}`,
		"negative dedup key":           `{"aggregatable_deduplication_keys":[{"deduplication_key":"-1"}]}`,
		"non numeric dedup key":        `{"aggregatable_deduplication_keys":[{"deduplication_key":"w"}]}`,
		"not an object":                `["event_trigger_data"]`,
	}
	for name, payload := range cases {
		s.Run(name, func() {
			_, err := s.fetchTrigger(payload)
			s.Require().ErrorIs(err, models.ErrParsing)
		})
	}
}

// =============================================================================
// Normalization arithmetic
// =============================================================================

func TestNormalizeExpiry(t *testing.T) {
	const daySeconds = int64(day / time.Second)
	cases := []struct {
		name       string
		seconds    int64
		sourceType models.SourceType
		want       time.Duration
	}{
		{"event below minimum", 3600, models.SourceTypeEvent, day},
		{"event rounds down", 2*daySeconds + daySeconds/2 - 1, models.SourceTypeEvent, 2 * day},
		{"event half rounds up", 2*daySeconds + daySeconds/2, models.SourceTypeEvent, 3 * day},
		{"event above maximum", 45 * daySeconds, models.SourceTypeEvent, 30 * day},
		{"event rounds to maximum", 30*daySeconds + daySeconds/2, models.SourceTypeEvent, 30 * day},
		{"navigation keeps seconds", 2*daySeconds + 17, models.SourceTypeNavigation, 2*day + 17*time.Second},
		{"navigation clamps low", 10, models.SourceTypeNavigation, day},
		{"oversized input", 1 << 62, models.SourceTypeNavigation, 30 * day},
		{"negative input", -5, models.SourceTypeEvent, day},
		{"event max int64", math.MaxInt64, models.SourceTypeEvent, 30 * day},
		{"event near max rounds down", math.MaxInt64 - math.MaxInt64%daySeconds + daySeconds/2 - 1, models.SourceTypeEvent, 30 * day},
		{"navigation max int64", math.MaxInt64, models.SourceTypeNavigation, 30 * day},
		{"event min int64", math.MinInt64, models.SourceTypeEvent, day},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeExpiry(tc.seconds, tc.sourceType); got != tc.want {
				t.Fatalf("normalizeExpiry(%d) = %v, want %v", tc.seconds, got, tc.want)
			}
		})
	}
}

func TestNormalizeReportWindow(t *testing.T) {
	expiry := 10 * day
	cases := []struct {
		name    string
		seconds int64
		present bool
		want    time.Duration
	}{
		{"absent defaults to expiry", 0, false, expiry},
		{"zero defaults to expiry", 0, true, expiry},
		{"below minimum", 60, true, day},
		{"inside range", int64(3 * day / time.Second), true, 3 * day},
		{"beyond expiry", int64(20 * day / time.Second), true, expiry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeReportWindow(tc.seconds, tc.present, expiry); got != tc.want {
				t.Fatalf("normalizeReportWindow = %v, want %v", got, tc.want)
			}
		})
	}
}
