package collector

var invalidObjectsProbe = Probe{
	Name:        "invalid_objects",
	Help:        "Objects in INVALID state.",
	Metric:      "oracledb_invalid_objects_info",
	Query:       `SELECT owner, object_name, object_type FROM dba_objects WHERE status = 'INVALID'`,
	Labels:      []string{"owner", "object_name", "object_type"},
	RowToLabels: columns(3),
}

var invalidIndexesProbe = Probe{
	Name:   "invalid_indexes",
	Help:   "Indexes not in VALID state, outside SYS schemas.",
	Metric: "oracledb_invalid_indexes_info",
	Query: `SELECT owner, index_name, table_name
  FROM dba_indexes
 WHERE status <> UPPER('VALID')
   AND owner NOT LIKE 'SYS%'`,
	Labels:      []string{"owner", "index_name", "table_name"},
	RowToLabels: columns(3),
}

var activeSQLProbe = Probe{
	Name:   "active_sql",
	Help:   "Statements of active user sessions.",
	Metric: "oracledb_active_sql_info",
	Query: `SELECT sesion.sid, username, osuser, machine, sesion.module,
       status, optimizer_mode, sql_text
  FROM v$sqlarea sqlarea, v$session sesion
 WHERE sesion.sql_hash_value = sqlarea.hash_value(+)
   AND sesion.sql_address = sqlarea.address(+)
   AND sesion.username IS NOT NULL
   AND status = 'ACTIVE'
 ORDER BY username, sql_text`,
	Labels:      []string{"sid", "username", "osuser", "machine", "module", "status", "optimizer_mode", "sql_text"},
	RowToLabels: columns(8),
}
