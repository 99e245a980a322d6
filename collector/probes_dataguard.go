package collector

var dataguardMasterStatusProbe = Probe{
	Name:   "dataguard_master_status",
	Help:   "Current redo log group on the primary.",
	Metric: "oracledb_dataguard_master_status_info",
	Query: `SELECT a.group#, thread#, sequence#, bytes / 1024 / 1024 "bytes(M)", a.status
  FROM v$log a, v$logfile b
 WHERE a.group# = b.group#
   AND a.status = 'CURRENT'
 ORDER BY 1, 2`,
	Labels:      []string{"group", "thread", "sequence", "size_mb", "status"},
	RowToLabels: columns(5),
}

// dataguardSlaveStatusProbe exposes the highest applied archived log
// sequence per thread as the sample value.
var dataguardSlaveStatusProbe = Probe{
	Name:   "dataguard_slave_status",
	Help:   "Highest applied archived log sequence per redo thread.",
	Metric: "oracledb_dataguard_slave_status_info",
	Query: `SELECT thread#, MAX(sequence#) "SEQUENCE#"
  FROM v$archived_log val, v$database vdb
 WHERE applied = 'YES'
   AND val.resetlogs_change# = vdb.resetlogs_change#
 GROUP BY thread#`,
	Labels:      []string{"thread"},
	RowToLabels: columns(1),
	RowToValue:  column(1),
}
