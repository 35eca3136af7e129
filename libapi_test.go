package projectionflow

import (
	"context"
	"errors"
	"testing"

	"github.com/drblury/projectionflow/store/memory"
)

type cartOpened struct {
	CartID string
	Owner  string
}

type itemAdded struct {
	CartID   string
	Quantity int
}

type cartClosed struct {
	CartID string
}

type cartsCleared struct {
	CartIDs []string
}

type cartView struct {
	CartID string `db:"cart_id,pk"`
	Owner  string
	Items  int
	Lines  int
}

var (
	cartID    = MustBind[cartView, string]("CartID")
	cartOwner = MustBind[cartView, string]("Owner")
	cartItems = MustBind[cartView, int]("Items")
	cartLines = Accessor("Lines", func(v *cartView) *int { return &v.Lines })
)

func newCartDenormalizer(t *testing.T, stores StoreFactory[cartView]) *Denormalizer[cartView] {
	t.Helper()
	d := NewDenormalizer(stores, NopLogger())
	On[cartOpened](d).AddNew().With(MustMapByName[cartOpened](cartID), MustMapByName[cartOpened](cartOwner))
	On[itemAdded](d).Save().
		WithKey(MustKeyByName[itemAdded](cartID)).
		With(
			Add(cartItems, func(m itemAdded) int { return m.Quantity }),
			Increment[itemAdded](cartLines),
		)
	On[cartClosed](d).Remove().WhenEqual(MustFilterByName[cartClosed](cartID))
	TranslateOne(
		Translate(On[cartsCleared](d), func(m cartsCleared) ([]cartClosed, error) {
			out := make([]cartClosed, 0, len(m.CartIDs))
			for _, id := range m.CartIDs {
				out = append(out, cartClosed{CartID: id})
			}
			return out, nil
		}),
		func(m cartClosed) string { return m.CartID },
	).Remove().WhenEqual(FilterBy(cartID, func(id string) string { return id }))
	return d
}

func TestDenormalizerFacadeEndToEnd(t *testing.T) {
	ctx := context.Background()
	stores, err := OpenStore[cartView](ctx, &Config{StoreDriver: "memory"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer stores.Close()

	d := newCartDenormalizer(t, stores)
	d.Finalize()

	steps := []any{
		cartOpened{CartID: "c-1", Owner: "ada"},
		cartOpened{CartID: "c-2", Owner: "bob"},
		itemAdded{CartID: "c-1", Quantity: 2},
		itemAdded{CartID: "c-1", Quantity: 3},
		itemAdded{CartID: "c-3", Quantity: 1},
		cartClosed{CartID: "c-2"},
	}
	for _, msg := range steps {
		if err := d.Handle(ctx, msg); err != nil {
			t.Fatalf("handle %T: %v", msg, err)
		}
	}

	table := stores.(*memory.Factory[cartView]).Table()
	rows := table.Find(FilterValue{Field: "CartID", Value: "c-1"})
	if len(rows) != 1 || rows[0].Owner != "ada" || rows[0].Items != 5 || rows[0].Lines != 2 {
		t.Fatalf("unexpected c-1 row: %+v", rows)
	}
	if table.Len() != 2 {
		t.Fatalf("expected c-1 and c-3 to remain, got %+v", table.Rows())
	}
	created := table.Find(FilterValue{Field: "CartID", Value: "c-3"})
	if len(created) != 1 || created[0].Items != 1 || created[0].Owner != "" {
		t.Fatalf("expected save to create c-3 from its key, got %+v", created)
	}

	if err := Dispatch(ctx, d, cartsCleared{CartIDs: []string{"c-1", "c-3"}}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("expected translate to remove every cart, got %+v", table.Rows())
	}

	if err := d.Handle(ctx, struct{}{}); !errors.Is(err, ErrMessageNotRouted) {
		t.Fatalf("expected ErrMessageNotRouted, got %v", err)
	}
}

func TestFacadeRoutesAndKinds(t *testing.T) {
	d := newCartDenormalizer(t, StoreFactoryFunc[cartView](func(context.Context) (Store[cartView], error) {
		return nil, errors.New("unused")
	}))

	routes := d.Routes()
	if len(routes) != 4 || routes[0] != MessageName(cartOpened{}) {
		t.Fatalf("unexpected routes: %v", routes)
	}
	if kind := On[cartsCleared](d).Kind(); kind != KindTranslate {
		t.Fatalf("expected translate kind, got %q", kind)
	}
	if kind := On[itemAdded](d).Kind(); kind != KindSave {
		t.Fatalf("expected save kind, got %q", kind)
	}
}

func TestMustConventionHelpersPanic(t *testing.T) {
	type unrelated struct{ Other int }

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected configuration error panic, got %v", r)
		}
	}()
	MustFilterByName[unrelated](cartID)
}

func TestBindExportReportsConfigurationErrors(t *testing.T) {
	if _, err := Bind[cartView, int]("Owner"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var cfgErr *ConfigurationError
	if _, err := Bind[cartView, string]("Missing"); !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestRegisterDenormalizerExportPropagatesErrors(t *testing.T) {
	if err := RegisterDenormalizer[cartView](nil, DenormalizerRegistration[cartView]{}); !errors.Is(err, ErrServiceRequired) {
		t.Fatalf("expected service required error, got %v", err)
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenStore[cartView](context.Background(), &Config{StoreDriver: "mongo"}); !errors.Is(err, ErrUnsupportedStoreDriver) {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestDecoderExports(t *testing.T) {
	msg, err := JSONDecoder[*itemAdded]().Decode([]byte(`{"CartID":"c-9","Quantity":4}`), "")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.CartID != "c-9" || msg.Quantity != 4 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestLoggerExports(t *testing.T) {
	logger := NewEntryServiceLogger(&stubEntry{})
	logger.Info("boot", LogFields{"component": "test"})
}

func TestEncodingExportAliases(t *testing.T) {
	payload := map[string]string{"hello": "world"}
	if _, err := Marshal(payload); err != nil {
		t.Fatalf("marshal alias failed: %v", err)
	}
	if err := Unmarshal([]byte(`{"hello":"world"}`), &payload); err != nil {
		t.Fatalf("unmarshal alias failed: %v", err)
	}
}

func TestMetadataExport(t *testing.T) {
	md := NewMetadata(MetadataKeyMessageType, "carts.opened")
	if md.MessageType() != "carts.opened" {
		t.Fatalf("expected metadata to contain message type, got %#v", md)
	}
}

func TestErrorCategoryConstants(t *testing.T) {
	if ErrorCategoryNone != "none" {
		t.Fatalf("expected ErrorCategoryNone to be 'none', got %q", ErrorCategoryNone)
	}
	if DefaultErrorClassifier(ErrAmbiguousMatch) != ErrorCategoryConflict {
		t.Fatal("expected ambiguous matches to classify as conflicts")
	}
}

type stubEntry struct {
	fields LogFields
	err    error
}

func (s *stubEntry) Error(args ...any) {}
func (s *stubEntry) Info(args ...any)  {}
func (s *stubEntry) Debug(args ...any) {}
func (s *stubEntry) Trace(args ...any) {}

func (s *stubEntry) WithError(err error) *stubEntry {
	clone := *s
	clone.err = err
	return &clone
}

func (s *stubEntry) WithField(key string, value any) *stubEntry {
	clone := *s
	if clone.fields == nil {
		clone.fields = make(LogFields)
	}
	clone.fields[key] = value
	return &clone
}
