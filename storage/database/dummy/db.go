package dummydb

import (
	"sync"

	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/user"
)

type (
	DB struct {
		institution *institutionTable
		user        *userTable
	}

	institutionTable struct {
		sync.RWMutex
		table   map[int]*institution.Institution
		pkCount int
	}

	userTable struct {
		sync.RWMutex
		table   map[int]*user.User
		pkCount int
	}
)

func Open() (*DB, error) {
	db := &DB{
		institution: &institutionTable{table: make(map[int]*institution.Institution)},
		user:        &userTable{table: make(map[int]*user.User)},
	}
	return db, nil
}
