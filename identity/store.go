package identity

import (
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// Record is a persisted identity. It survives client restarts the same way
// the browser build keeps its name in local storage.
type Record struct {
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	CreatedAt int64  `json:"createdAt"`
}

type hostMarker struct {
	Owner     string `json:"owner"`
	CreatedAt int64  `json:"createdAt"`
}

// Store persists an identity record and the host-claimed marker.
type Store interface {
	Load() (Record, bool, error)
	Save(Record) error
	HostClaimed() (bool, error)
	ClaimHost(name string) error
}

const (
	identityFile = "identity.json"
	markerFile   = "room_snapshot.json"
)

// FileStore keeps the identity record and host marker as JSON files in one
// directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (fs *FileStore) Load() (Record, bool, error) {
	b, err := os.ReadFile(filepath.Join(fs.dir, identityFile))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err = json.Unmarshal(b, &rec); err != nil {
		return Record{}, false, err
	}
	return rec, rec.Name != "", nil
}

func (fs *FileStore) Save(rec Record) error {
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(fs.dir, identityFile), b, 0o644)
}

func (fs *FileStore) HostClaimed() (bool, error) {
	_, err := os.Stat(filepath.Join(fs.dir, markerFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *FileStore) ClaimHost(name string) error {
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(&hostMarker{Owner: name, CreatedAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(fs.dir, markerFile), b, 0o644)
}

// Bootstrap resolves the local participant identity: a previously saved
// record wins, otherwise the first visitor claims the host name and later
// ones draw from the pool. The result is saved before returning.
func Bootstrap(st Store, rng *rand.Rand) (Record, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	rec, ok, err := st.Load()
	if err != nil {
		return Record{}, err
	}
	if ok {
		return rec, nil
	}

	claimed, err := st.HostClaimed()
	if err != nil {
		return Record{}, err
	}
	if !claimed {
		rec = Record{Name: HostName, IsHost: true, CreatedAt: time.Now().UnixMilli()}
		if err = st.ClaimHost(HostName); err != nil {
			return Record{}, err
		}
	} else {
		name, _ := Assign(Pool(), map[string]struct{}{HostName: {}}, rng)
		rec = Record{Name: name, CreatedAt: time.Now().UnixMilli()}
	}

	if err = st.Save(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
