package supabase

import (
	"fmt"
	"strings"
)

// conflictTarget is the primary key of both tables. Ids are unique per owner
// only, so a document exported by one account imports cleanly into another.
const conflictTarget = "owner_id,id"

const schemaTemplate = `create table if not exists {{persons}} (
  owner_id    uuid not null,
  id          text not null,
  first_name  text not null default '',
  last_name   text not null default '',
  company     text,
  comment     text,
  proximity   text not null default 'moyen' check (proximity in ('fort', 'moyen', 'faible')),
  categories  text[] not null default '{}',
  position_x  double precision,
  position_y  double precision,
  created_at  timestamptz not null default now(),
  updated_at  timestamptz not null default now(),
  primary key (owner_id, id)
);

create table if not exists {{relations}} (
  owner_id    uuid not null,
  id          text not null,
  source_id   text not null,
  target_id   text not null,
  proximity   text not null default 'moyen' check (proximity in ('fort', 'moyen', 'faible')),
  created_at  timestamptz not null default now(),
  updated_at  timestamptz not null default now(),
  primary key (owner_id, id)
);

create index if not exists {{relations}}_endpoints_idx on {{relations}} (owner_id, source_id, target_id);

alter table {{persons}} enable row level security;
alter table {{relations}} enable row level security;

create policy {{persons}}_owner on {{persons}}
  using (owner_id = auth.uid()) with check (owner_id = auth.uid());
create policy {{relations}}_owner on {{relations}}
  using (owner_id = auth.uid()) with check (owner_id = auth.uid());
`

// Schema returns the DDL creating both tables and their row-level policies
func Schema(personsTable, relationsTable string) (string, error) {
	for _, name := range []string{personsTable, relationsTable} {
		if !isIdentifier(name) {
			return "", fmt.Errorf("invalid table name %q", name)
		}
	}
	r := strings.NewReplacer("{{persons}}", personsTable, "{{relations}}", relationsTable)
	return r.Replace(schemaTemplate), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
